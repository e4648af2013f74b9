package framestore

import (
	"errors"
)

var (
	ErrClosedFile       = errors.New("file is not open")
	ErrPossibleDataLoss = errors.New("possible data loss: file is already open and mode 'w' would truncate it")
	ErrKeyNotFound      = errors.New("no object found at key")
	ErrNotTableFormat   = errors.New("object is not table format, cannot search/append")

	ErrSchemaMismatch = errors.New("schema does not match existing table")
	ErrStringTooLong  = errors.New("string length exceeds column limit, use min_itemsize to preset column sizes")

	ErrUndefinedName   = errors.New("name is not defined")
	ErrInvertCondition = errors.New("cannot use an invert condition when passing to the native engine")
	ErrJointFilters    = errors.New("unable to collapse joint filters")
	ErrNonTableFilter  = errors.New("passing a filterable condition to a non-table indexer")
	ErrFilterField     = errors.New("cannot find the field for filtering")

	ErrBadCoordinates = errors.New("where must have index locations >= start and < stop")
	ErrComplexIndex   = errors.New("cannot create an index on a complex column, use fixed format or drop it from data_columns")

	ErrReadOnly = errors.New("file is opened read-only")
)
