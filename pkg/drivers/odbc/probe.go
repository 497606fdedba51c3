package odbc

import "strings"

// defaultDriverCandidates is the probing order when no explicit driver was
// configured: newest Microsoft drivers first, then the legacy Native Client
// names, then the ancient built-in driver.
var defaultDriverCandidates = []string{
	"ODBC Driver 18 for SQL Server",
	"ODBC Driver 17 for SQL Server",
	"ODBC Driver 13 for SQL Server",
	"ODBC Driver 11 for SQL Server",
	"SQL Server Native Client 11.0",
	"SQL Server Native Client 10.0",
	"SQL Server",
}

// candidates returns the driver names to attempt and whether the probing
// fallback applies. An explicitly configured driver is attempted exactly
// once with no fallback. Otherwise a previously cached working driver is
// tried first, ahead of the default list.
func (p *Pool) candidates() (names []string, probing bool) {
	if p.Cfg.ODBCDriver != "" {
		return []string{p.Cfg.ODBCDriver}, false
	}

	if p.cache != nil {
		if cached := p.cache.CachedDriver(); cached != "" {
			names = append(names, cached)
		}
	}
	for _, d := range defaultDriverCandidates {
		if len(names) > 0 && names[0] == d {
			continue
		}
		names = append(names, d)
	}
	return names, true
}

// driverNotFoundMarkers are substrings of driver-manager errors meaning the
// candidate driver is not installed. Only these continue the probing loop;
// any other connection error (bad credentials, unreachable host) surfaces
// immediately so probing never masks a real failure.
var driverNotFoundMarkers = []string{
	"IM002",
	"Data source name not found",
	"no default driver specified",
	"Can't open lib",
	"file not found",
	"Driver's SQLAllocHandle",
}

func isDriverNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range driverNotFoundMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
