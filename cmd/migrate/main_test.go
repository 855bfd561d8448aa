package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced []int
	ups    int
}

func (f *fakeMigrator) Up() error {
	f.ups++
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, nil))
	assert.Equal(t, 1, m.ups)
}

func TestRunUpFailure(t *testing.T) {
	m := &fakeMigrator{upErr: errors.New("dirty database")}
	assert.ErrorContains(t, run(m, []string{"up"}), "dirty database")
}

func TestRunDownAndForce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"down", "1"}))
	require.NoError(t, run(m, []string{"force", "1"}))
	assert.Equal(t, []int{-1}, m.steps)
	assert.Equal(t, []int{1}, m.forced)
}

func TestRunRejectsBadArguments(t *testing.T) {
	m := &fakeMigrator{}
	assert.Error(t, run(m, []string{"down"}))
	assert.Error(t, run(m, []string{"force", "x"}))
	assert.Error(t, run(m, []string{"sideways"}))
	assert.Empty(t, m.steps)
	assert.Empty(t, m.forced)
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	src, err := newSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	defer down.Close()
}
