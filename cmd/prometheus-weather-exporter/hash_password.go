package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashPasswordFlags struct {
	cost int
}

var errEmptyPassword = errors.New("password must not be empty")

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for the auth section",
	Long: `Read a password from stdin and print its bcrypt hash.

Examples:
  # Hash interactively
  prometheus-weather-exporter hash-password

  # Hash with a higher cost
  echo -n secret | prometheus-weather-exporter hash-password --cost 12`,
	Args: cobra.NoArgs,
	RunE: hashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)

	hashPasswordCmd.Flags().IntVar(&hashPasswordFlags.cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}

func hashPassword(cmd *cobra.Command, _ []string) error {
	cost := hashPasswordFlags.cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}
