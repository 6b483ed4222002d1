package service

import (
	"fmt"
	"strconv"
	"strings"
)

func yesNo(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func runningLabel(v bool) string {
	return yesNo(v, "▶️ работает", "⏹ остановлен")
}

func f2(v float64) string { // для красивого вывода
	return fmt.Sprintf("%.2f", v)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
