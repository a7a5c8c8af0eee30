package ntchat

import "errors"

var errMissingAPI = errors.New("ntchat: sidecar client is required")
