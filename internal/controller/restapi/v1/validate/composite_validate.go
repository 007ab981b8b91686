package validate

const (
	MinProductID = 1
	MaxNameLen   = 255
)
