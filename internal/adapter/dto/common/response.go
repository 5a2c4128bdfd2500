package common

// ListResponse wraps a list with the number of items returned
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}
