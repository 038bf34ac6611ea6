/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/logging"
)

func newLogger(environment string) zerolog.Logger {
	return logging.Setup(environment)
}
