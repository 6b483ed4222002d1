package models

import (
	"fmt"
	"strings"
	"time"
)

type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastWarning
	ToastDanger
)

func (l ToastLevel) String() string {
	switch l {
	case ToastSuccess:
		return "success"
	case ToastWarning:
		return "warning"
	case ToastDanger:
		return "danger"
	default:
		return "info"
	}
}

func ParseToastLevel(s string) (ToastLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "":
		return ToastInfo, nil
	case "success":
		return ToastSuccess, nil
	case "warning", "warn":
		return ToastWarning, nil
	case "danger", "error":
		return ToastDanger, nil
	}
	return ToastInfo, fmt.Errorf("unknown toast level %q", s)
}

// Toast: короткое уведомление оператору.
type Toast struct {
	Level    ToastLevel
	Message  string
	Duration time.Duration
	At       time.Time
}

func NewToast(level ToastLevel, msg string, d time.Duration) Toast {
	return Toast{Level: level, Message: msg, Duration: d, At: time.Now()}
}
