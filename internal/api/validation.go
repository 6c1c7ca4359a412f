package api

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinPasswordLength applies to sign-up and password reset.
const MinPasswordLength = 8

// Quiz generation bounds accepted by the backend.
const (
	MinQuizQuestions   = 1
	MaxQuizQuestions   = 50
	MinQuizTimeMinutes = 1
	MaxQuizTimeMinutes = 180
)

func checkEmail(errs fieldErrors, email string) {
	switch {
	case email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		errs["email"] = "Invalid email format"
	}
}

// ValidateSignIn checks sign-in input.
func ValidateSignIn(email, password string) error {
	errs := fieldErrors{}
	checkEmail(errs, email)
	if password == "" {
		errs["password"] = "Password is required"
	}
	return errs.err()
}

// ValidateSignUp checks sign-up input.
func ValidateSignUp(req SignUpRequest) error {
	errs := fieldErrors{}
	checkEmail(errs, req.Email)
	if strings.TrimSpace(req.Username) == "" {
		errs["username"] = "Username is required"
	}
	switch {
	case req.Password == "":
		errs["password"] = "Password is required"
	case len(req.Password) < MinPasswordLength:
		errs["password"] = "Password must be at least 8 characters"
	}
	return errs.err()
}

// ValidateEmail checks a single address, as on the forgot-password form.
func ValidateEmail(email string) error {
	errs := fieldErrors{}
	checkEmail(errs, email)
	return errs.err()
}

// ValidateReset checks a password reset.
func ValidateReset(token, password, confirm string) error {
	errs := fieldErrors{}
	if token == "" {
		errs["token"] = "Reset token is missing. Please request a new password reset link."
	}
	switch {
	case password == "":
		errs["password"] = "Password is required"
	case len(password) < MinPasswordLength:
		errs["password"] = "Password must be at least 8 characters"
	}
	switch {
	case confirm == "":
		errs["confirm_password"] = "Please confirm your password"
	case password != confirm:
		errs["confirm_password"] = "Passwords do not match"
	}
	return errs.err()
}

// ValidateQuizRequest checks quiz generation bounds.
func ValidateQuizRequest(req GenerateQuizRequest) error {
	errs := fieldErrors{}
	if len(req.DocumentIDs) == 0 {
		errs["document_ids"] = "Select at least one document"
	}
	if req.NumQuestions < MinQuizQuestions || req.NumQuestions > MaxQuizQuestions {
		errs["num_questions"] = "Number of questions must be between 1 and 50"
	}
	if req.TimeLimitMinutes < MinQuizTimeMinutes || req.TimeLimitMinutes > MaxQuizTimeMinutes {
		errs["time_limit_minutes"] = "Time limit must be between 1 and 180 minutes"
	}
	switch req.Difficulty {
	case "", "easy", "medium", "hard":
	default:
		errs["difficulty"] = "Difficulty must be easy, medium or hard"
	}
	return errs.err()
}

// PasswordStrength scores a password from 0 to 5 and lists what is missing.
func PasswordStrength(password string) (int, []string) {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	score := 0
	var feedback []string
	check := func(ok bool, hint string) {
		if ok {
			score++
		} else {
			feedback = append(feedback, hint)
		}
	}
	check(len(password) >= MinPasswordLength, "At least 8 characters")
	check(lower, "Lowercase letter")
	check(upper, "Uppercase letter")
	check(digit, "Number")
	check(special, "Special character")
	return score, feedback
}
