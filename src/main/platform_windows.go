//go:build windows

package main

import (
	"github.com/lxn/win"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")
)

// enableDPIAwareness sets per-monitor DPI awareness so cursor coordinates and
// captured pixels agree on scaled displays.
func enableDPIAwareness() {
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			logrus.Debugf("DPI: per-monitor DPI awareness enabled")
		} else {
			logrus.Warnf("DPI: SetProcessDpiAwareness failed, error code: %d", ret)
		}
		return
	}

	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		logrus.Warnf("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		logrus.Warnf("DPI: SetProcessDPIAware failed")
		return
	}
	logrus.Debugf("DPI: system DPI awareness enabled (fallback)")
}

func logMonitorConfiguration() {
	metric := func(index int32) int { return int(win.GetSystemMetrics(index)) }
	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smXVirtualScreen  = 76
		smYVirtualScreen  = 77
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)
	logrus.Infof("MONITOR: %d monitors, virtual screen x:%d y:%d w:%d h:%d, primary w:%d h:%d",
		metric(smCMonitors),
		metric(smXVirtualScreen), metric(smYVirtualScreen), metric(smCXVirtualScreen), metric(smCYVirtualScreen),
		metric(smCXScreen), metric(smCYScreen))
}
