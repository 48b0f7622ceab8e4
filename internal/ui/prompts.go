package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PromptYesNo asks a yes/no question on the terminal and returns the
// answer. Empty or unrecognized input falls back to defaultYes, as does
// a non-interactive stdin, so scripted runs never block.
func PromptYesNo(question string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	if !IsTerminal() {
		fmt.Printf("%s %s (non-interactive, defaulting to %t)\n", question, hint, defaultYes)
		return defaultYes
	}

	fmt.Printf("%s %s ", question, hint)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		fmt.Printf("(error reading input, defaulting to %t)\n", defaultYes)
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return defaultYes
}
