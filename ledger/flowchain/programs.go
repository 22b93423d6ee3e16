package flowchain

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed transactions/*.cdc scripts/*.cdc
var transactionFS embed.FS

var importRegex = regexp.MustCompile(`(?m)^(\s*)import\s+"(\w+)"`)

// Programs resolves program ids to transaction source with concrete contract addresses.
type Programs struct {
	contracts map[string]string
}

func NewPrograms(contracts map[string]string) *Programs {
	normalized := make(map[string]string, len(contracts))
	for name, addr := range contracts {
		normalized[name] = "0x" + strings.TrimPrefix(strings.ToLower(addr), "0x")
	}
	return &Programs{contracts: normalized}
}

func (p *Programs) Script(programID string) ([]byte, error) {
	src, err := transactionFS.ReadFile("transactions/" + programID + ".cdc")
	if err != nil {
		return nil, fmt.Errorf("unknown program %s", programID)
	}
	return p.rewriteImports(src)
}

// Query returns the source of a read only script.
func (p *Programs) Query(name string) ([]byte, error) {
	src, err := transactionFS.ReadFile("scripts/" + name + ".cdc")
	if err != nil {
		return nil, fmt.Errorf("unknown script %s", name)
	}
	return p.rewriteImports(src)
}

// Known reports whether an embedded transaction exists for programID.
func (p *Programs) Known(programID string) bool {
	_, err := transactionFS.Open("transactions/" + programID + ".cdc")
	return err == nil
}

func (p *Programs) rewriteImports(src []byte) ([]byte, error) {
	var missing []string
	out := importRegex.ReplaceAllStringFunc(string(src), func(stmt string) string {
		m := importRegex.FindStringSubmatch(stmt)
		addr, ok := p.contracts[m[2]]
		if !ok {
			missing = append(missing, m[2])
			return stmt
		}
		return fmt.Sprintf("%simport %s from %s", m[1], m[2], addr)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("no address configured for contracts %s", strings.Join(missing, ", "))
	}
	return []byte(out), nil
}
