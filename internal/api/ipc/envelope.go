package ipc

import "cdi-tracker/pkg/apperr"

// Response is the envelope returned for every channel call. Error and Data
// are never both set.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// List is the data of every listing channel.
type List[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: len(items)}
}

// Partial lets a handler report a failed call that still carries data, such
// as the count of a bulk delete that did not remove every row.
type Partial struct {
	Data   interface{}
	Errors []string
}

func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Fail builds the envelope for err. Validation failures also list every
// message in Errors.
func Fail(err error) Response {
	e := apperr.As(err)
	resp := Response{Success: false, Error: e.Message()}
	if e.Kind == apperr.KindValidation && len(e.Messages) > 0 {
		resp.Errors = e.Messages
	}
	return resp
}

func fromPartial(p Partial) Response {
	return Response{Success: false, Data: p.Data, Errors: p.Errors}
}
