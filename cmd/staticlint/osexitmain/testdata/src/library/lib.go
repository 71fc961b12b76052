package library

import "os"

func main() {
	os.Exit(1)
}

// Stop exits the process.
func Stop() { os.Exit(0) }
