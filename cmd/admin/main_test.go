package main

import (
	"bytes"
	"testing"

	"grievance/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"stages"})

	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "1. "+models.StatusPending)
	assert.Contains(t, out.String(), "6. "+models.StatusClosed)
	assert.Contains(t, out.String(), models.DeptRoads)
}

func TestSetStatusRequiresArgs(t *testing.T) {
	rootCmd.SetArgs([]string{"set-status", "GRV-1"})
	assert.Error(t, rootCmd.Execute())
}

func TestCreateAdminRejectsUnknownDepartment(t *testing.T) {
	rootCmd.SetArgs([]string{"create-admin", "--name", "A", "--email", "a@example.com",
		"--password", "secret123", "--department", "Space Department"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown department")
}
