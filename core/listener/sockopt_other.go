//go:build !unix

package listener

func setListenerOptions(fd uintptr) error { return nil }

func setConnOptions(fd uintptr, keepAlive bool) {}
