package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Files derived from the Bureau CLI keep its Apache-2.0 notice.
func TestDerivedFilesKeepLicenseNotice(t *testing.T) {
	for _, name := range []string{
		"command.go",
		"suggest.go",
		"errors.go",
		"logger.go",
		"output.go",
		"password.go",
	} {
		data, err := os.ReadFile(name)
		require.NoError(t, err, name)
		assert.True(t, strings.HasPrefix(string(data),
			"// Portions Copyright 2026 The Bureau Authors\n// SPDX-License-Identifier: Apache-2.0\n"), name)
	}
}
