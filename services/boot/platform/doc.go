// Package platform binds the boot engine's capabilities to real hardware:
// TinyGo rp2040 peripherals on the device, and host serial ports, timers and
// glog when the engine runs as an emulator.
package platform
