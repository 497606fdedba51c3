package odbc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// buildConnString constructs an ODBC connection string for the given driver
// name. The Database= clause is omitted entirely when no default database is
// configured; some servers treat an empty value as an error, so an empty
// string is not equivalent to omitting the clause.
func buildConnString(cfg driver.Config, driverName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Driver={%s};", driverName)

	server := cfg.Server
	if cfg.Port > 0 {
		server = fmt.Sprintf("%s,%d", cfg.Server, cfg.Port)
	}
	fmt.Fprintf(&b, "Server=%s;", server)

	if cfg.Database != "" {
		fmt.Fprintf(&b, "Database=%s;", cfg.Database)
	}

	if cfg.Username != "" {
		fmt.Fprintf(&b, "UID=%s;PWD=%s;", cfg.Username, cfg.Password)
	} else {
		b.WriteString("Trusted_Connection=Yes;")
	}

	if cfg.Encrypt {
		b.WriteString("Encrypt=Yes;")
	} else {
		b.WriteString("Encrypt=No;")
	}
	if cfg.TrustServerCertificate {
		b.WriteString("TrustServerCertificate=Yes;")
	}

	return b.String()
}

var passwordClause = regexp.MustCompile(`(?i)(PWD|Password)=[^;]*`)

// MaskConnString replaces password values in an ODBC connection string so it
// can appear in logs and error messages.
func MaskConnString(s string) string {
	return passwordClause.ReplaceAllString(s, "$1=***")
}
