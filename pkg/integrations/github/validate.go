package github

import (
	"regexp"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
)

var (
	// Users and orgs: 1-39 alphanumerics or hyphens, no leading hyphen.
	validOwner = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,38}$`)
	// Repositories: 1-100 alphanumerics, hyphens, underscores or dots.
	validRepo = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// ValidateOwner validates a GitHub username or organization name.
func ValidateOwner(owner string) error {
	if owner == "" {
		return errs.New(errs.ErrCodeInvalidInput, "owner is required")
	}
	if !validOwner.MatchString(owner) {
		return errs.New(errs.ErrCodeInvalidInput, "invalid owner %q", owner)
	}
	return nil
}

// ValidateRepo validates a GitHub repository name.
func ValidateRepo(repo string) error {
	if repo == "" {
		return errs.New(errs.ErrCodeInvalidInput, "repo is required")
	}
	if repo == "." || repo == ".." || !validRepo.MatchString(repo) {
		return errs.New(errs.ErrCodeInvalidInput, "invalid repo %q", repo)
	}
	return nil
}

// ValidateRepoRef validates both owner and repo parameters.
func ValidateRepoRef(owner, repo string) error {
	if err := ValidateOwner(owner); err != nil {
		return err
	}
	return ValidateRepo(repo)
}
