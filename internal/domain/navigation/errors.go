package navigation

import "errors"

// ErrNoRouter reports a navigator built without a router to delegate to.
var ErrNoRouter = errors.New("navigation: no router")
