package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/yearbook/picker-server-go/internal/util"
)

// Prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH. The password is
// read from the first argument, or from stdin when no argument is given.
func main() {
	password := ""
	if len(os.Args) >= 2 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go <password>\n")
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		fmt.Fprintf(os.Stderr, "Error: password must not be empty\n")
		os.Exit(1)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
