package watchlist

// Config is the top-level structure of the watch-list file.
//
//	sites:
//	  - url: https://www.tum.de/en/
//	  - url: docs.example.com/guide
//	    host_name: example-docs
//	    domain_limit: docs.example.com/guide/
type Config struct {
	Sites []Entry `yaml:"sites"`
}

// Entry is one site that should be analyzed.
// HostName and DomainLimit are derived from URL when empty.
type Entry struct {
	URL         string `yaml:"url"`
	HostName    string `yaml:"host_name,omitempty"`
	DomainLimit string `yaml:"domain_limit,omitempty"`
}
