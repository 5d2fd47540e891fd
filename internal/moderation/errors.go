package moderation

import "errors"

var errNoAccountManager = errors.New("identity provider not configured")
