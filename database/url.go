package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ConstructDatabaseURL constructs a complete database URL from base URL and database name
// This function:
// - Combines base URL with database name
// - Automatically adds sslmode=disable if not present
// - Handles existing query parameters correctly
func ConstructDatabaseURL(baseURL, databaseName string) string {
	// If DATABASE_NAME is not set, return the base URL as-is
	if databaseName == "" {
		return baseURL
	}

	baseURL = strings.TrimRight(baseURL, "/")
	var databaseURL string

	if strings.Contains(baseURL, "?") {
		// Insert database name before the query parameters
		parts := strings.SplitN(baseURL, "?", 2)
		databaseURL = fmt.Sprintf("%s/%s?%s", parts[0], databaseName, parts[1])
	} else {
		databaseURL = fmt.Sprintf("%s/%s", baseURL, databaseName)
	}

	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "&"
		if !strings.Contains(databaseURL, "?") {
			separator = "?"
		}
		databaseURL = fmt.Sprintf("%s%ssslmode=disable", databaseURL, separator)
	}

	return databaseURL
}

// BuildDatabaseURL assembles a postgres URL from discrete connection parameters.
// Returns "" when host is empty.
func BuildDatabaseURL(host, port, user, password, databaseName string) string {
	if host == "" {
		return ""
	}
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
	}
	if user != "" {
		if password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}

	return ConstructDatabaseURL(u.String(), databaseName)
}

// URLFromEnv resolves the database URL from DATABASE_URL/DATABASE_NAME, falling
// back to DB_HOST, DB_PORT, DB_USER, DB_PASSWORD and DB_NAME.
func URLFromEnv() string {
	if baseURL := os.Getenv("DATABASE_URL"); baseURL != "" {
		return ConstructDatabaseURL(baseURL, os.Getenv("DATABASE_NAME"))
	}
	return BuildDatabaseURL(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)
}
