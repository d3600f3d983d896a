//go:build windows

package timing

import "golang.org/x/sys/windows"

func queryFrequency() (int64, error) {
	var freq int64
	if err := windows.QueryPerformanceFrequency(&freq); err != nil {
		return 0, err
	}
	return freq, nil
}
