package client

import (
	"errors"
	"fmt"
	"net"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrInvalidDSN = errors.New("DSN is malformed")

	dsnPattern = regexp.MustCompile(`(?i)^([0-9a-z-]+):([0-9a-z-]+)@([0-9a-z-.]+):([0-9]+)/([0-9a-z-]+)$`)
)

// DSN holds the credentials and location of the service for one provider.
//
// A DSN is structured as follows:
//     {publicToken}:{privateToken}@{host}:{port}/{providerId}
//
// All fields are required. For example:
//     sessionpubkey:sessionprivkey@rt.thenewtricks.com:9090/928308cd-eff8-4ef6-a154-f8268ec663d5
type DSN struct {
	PublicToken  string
	PrivateToken string
	Host         string
	Port         string
	ProviderID   uuid.UUID
}

func ParseDSN(dsn string) (*DSN, error) {
	m := dsnPattern.FindStringSubmatch(dsn)
	if m == nil {
		return nil, fmt.Errorf("Failed to parse '%s': %w", dsn, ErrInvalidDSN)
	}

	providerID, err := uuid.Parse(m[5])
	if err != nil {
		return nil, fmt.Errorf("Failed to parse provider id '%s': %w", m[5], ErrInvalidDSN)
	}

	return &DSN{
		PublicToken:  m[1],
		PrivateToken: m[2],
		Host:         m[3],
		Port:         m[4],
		ProviderID:   providerID,
	}, nil
}

// URL is the websocket URL of the service.
func (d *DSN) URL(secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}

	return scheme + "://" + net.JoinHostPort(d.Host, d.Port) + "/"
}
