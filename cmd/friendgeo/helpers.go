package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"
)

func parseUserType(s string) (models.UserType, error) {
	t, err := models.ParseUserType(s)
	if err != nil {
		return "", errs.Validation("%v", err)
	}
	return t, nil
}

// userTypesOrAll returns the flag's type when set, else both cohorts
func userTypesOrAll(s string) ([]models.UserType, error) {
	if s == "" || s == "all" {
		return []models.UserType{models.UserTypeStar, models.UserTypeRemaining}, nil
	}
	t, err := parseUserType(s)
	if err != nil {
		return nil, err
	}
	return []models.UserType{t}, nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt + " (y/N): ")
	input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}
