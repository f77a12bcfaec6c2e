package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
)

// PrintBanner prints the startup banner (spec.md's CLI is a standalone
// tool; the banner mirrors the teacher's printBanner in ui.go).
func PrintBanner() {
	color.New(color.FgCyan, color.Bold).Println("mediadupe — media deduplication")
}

// PromptRoots asks the user for one or more roots to scan when none were
// given on the command line (SPEC_FULL.md "--interactive flag"), grounded
// on the teacher's interactivePrompt text-prompt fallback path (ui.go).
func PromptRoots() ([]string, error) {
	var roots []string
	for {
		label := "Root directory to scan"
		if len(roots) > 0 {
			label = "Another root directory (leave blank to continue)"
		}
		prompt := promptui.Prompt{
			Label: label,
			Validate: func(input string) error {
				if input == "" && len(roots) > 0 {
					return nil
				}
				info, err := os.Stat(input)
				if err != nil || !info.IsDir() {
					return fmt.Errorf("not a valid directory")
				}
				return nil
			},
		}
		val, err := prompt.Run()
		if err == promptui.ErrInterrupt {
			color.New(color.FgRed, color.Bold).Println("\ninterrupted, exiting")
			os.Exit(130)
		}
		if err != nil {
			return nil, err
		}
		if val == "" {
			break
		}
		roots = append(roots, val)
	}
	return roots, nil
}

// ConfirmMergePlan gates execution behind an explicit yes/no, the text-UI
// equivalent of policies.require_confirmation (spec.md §6), grounded on
// the teacher's promptui.Select ready-check in ui.go.
func ConfirmMergePlan(summary string) (bool, error) {
	fmt.Println()
	color.New(color.FgYellow, color.Bold).Println(summary)
	sel := promptui.Select{
		Label: "Apply this merge plan?",
		Items: []string{"Yes, merge now", "No, cancel"},
	}
	_, choice, err := sel.Run()
	if err == promptui.ErrInterrupt {
		color.New(color.FgRed, color.Bold).Println("\ninterrupted, exiting")
		os.Exit(130)
	}
	if err != nil {
		return false, err
	}
	return choice == "Yes, merge now", nil
}
