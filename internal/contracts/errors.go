package contracts

import (
	"errors"
	"fmt"
)

// ⭐ SSOT: 파이프라인 에러 분류는 여기서만 정의

var (
	// ErrInsufficientData matches every InsufficientDataError via errors.Is
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter matches every InvalidParameterError via errors.Is
	ErrInvalidParameter = errors.New("invalid parameter")
)

// InsufficientDataError reports fewer observations or tickers than a stage requires
type InsufficientDataError struct {
	Stage  string
	Need   int
	Got    int
	Detail string
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("%s: insufficient data: need %d, got %d", e.Stage, e.Need, e.Got)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is lets errors.Is(err, ErrInsufficientData) match
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// InvalidParameterError reports a parameter outside its allowed range
type InvalidParameterError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Message)
}

// Is lets errors.Is(err, ErrInvalidParameter) match
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// NewInsufficientData builds an InsufficientDataError
func NewInsufficientData(stage string, need, got int, detail string) error {
	return &InsufficientDataError{Stage: stage, Need: need, Got: got, Detail: detail}
}

// NewInvalidParameter builds an InvalidParameterError
func NewInvalidParameter(field string, value interface{}, message string) error {
	return &InvalidParameterError{Field: field, Value: value, Message: message}
}
