package main

import (
	"os"
	sys "syscall"
)

func main() {
	defer func() { os.Exit(3) }()
	if len(os.Args) > 3 {
		sys.Exit(2) // want `direct call to syscall.Exit in main.main`
	}
	helper()
	os.Exit(1) // want `direct call to os.Exit in main.main`
}

func helper() {
	if len(os.Args) > 5 {
		os.Exit(4)
	}
}
