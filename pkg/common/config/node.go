package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
)

type Node struct {
	URL         string            `yaml:"url"          validate:"required,url"`
	ApiKey      string            `yaml:"api_key"`
	ApiKeyEnv   string            `yaml:"api_key_env"`
	Username    string            `yaml:"username"`
	Password    string            `yaml:"password"`
	PasswordEnv string            `yaml:"password_env"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Query       map[string]string `yaml:"query,omitempty"`
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces ${VAR} references from the environment. ${API_KEY} takes
// the node's resolved key when there is one.
func expand(s, apiKey string) string {
	if s == "" {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		if name == "API_KEY" && apiKey != "" {
			return apiKey
		}
		return os.Getenv(name)
	})
}

func substituteEnvVars(s string) string { return expand(s, "") }

func (n Node) finalize() (Node, error) {
	if n.ApiKey == "" && n.ApiKeyEnv != "" {
		n.ApiKey = os.Getenv(n.ApiKeyEnv)
	}
	if n.Password == "" && n.PasswordEnv != "" {
		n.Password = os.Getenv(n.PasswordEnv)
	}

	n.URL = expand(n.URL, n.ApiKey)
	n.Username = expand(n.Username, n.ApiKey)
	n.Password = expand(n.Password, n.ApiKey)

	headers := make(map[string]string, len(n.Headers))
	for k, v := range n.Headers {
		headers[k] = expand(v, n.ApiKey)
	}
	n.Headers = headers

	if len(n.Query) == 0 {
		return n, nil
	}
	u, err := url.Parse(n.URL)
	if err != nil {
		return n, fmt.Errorf("invalid node url %q: %w", n.URL, err)
	}
	q := u.Query()
	for k, v := range n.Query {
		q.Set(k, expand(v, n.ApiKey))
	}
	u.RawQuery = q.Encode()
	n.URL = u.String()
	return n, nil
}

// FinalizeNodes resolves credentials from the environment and expands
// ${VAR} references in node URLs, headers and query values.
func (c Chains) FinalizeNodes() error {
	for name, chain := range c {
		nodes := make([]Node, len(chain.Nodes))
		for i, n := range chain.Nodes {
			node, err := n.finalize()
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			nodes[i] = node
		}
		chain.Nodes = nodes
		chain.WSURL = substituteEnvVars(chain.WSURL)
		c[name] = chain
	}
	return nil
}
