// Package rules generates the pf anchor ruleset for a forwarding spec.
//
// Generation is a pure function of the spec: the whole ruleset is rebuilt
// on every setup, never patched in place, so a partial edit can never
// corrupt the anchor. Output is deterministic except for the generation
// timestamp comment, which Normalize strips for comparisons.
package rules

import (
	"fmt"
	"strings"
	"time"

	"grimm.is/limawan/internal/forwarding"
)

// headerPrefix opens the generated ruleset's header comment. ExtractSpec
// relies on it to recover the deployed spec from the file.
const headerPrefix = "limawan anchor ruleset: "

// Builder accumulates pf rule lines for one anchor.
type Builder struct {
	lines []string
}

// NewBuilder creates an empty ruleset builder.
func NewBuilder() *Builder {
	return &Builder{lines: make([]string, 0, 16)}
}

// AddComment adds a comment line.
func (b *Builder) AddComment(text string) {
	b.lines = append(b.lines, "# "+text)
}

// AddRule adds a raw pf rule line.
func (b *Builder) AddRule(rule string) {
	b.lines = append(b.lines, rule)
}

// AddBlank adds an empty separator line.
func (b *Builder) AddBlank() {
	b.lines = append(b.lines, "")
}

// Build returns the assembled ruleset text, newline-terminated.
func (b *Builder) Build() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// Generate produces the anchor ruleset for spec. now feeds only the
// human-readable generation timestamp comment.
//
// Rule order is fixed: redirect, return path, stateful pass restricted to
// SYN-initiated flows, outbound NAT, stealth-scan blocks. pf evaluates nat
// and rdr rules before filter rules within an anchor, and the blocks use
// "quick", so ordering within the file is stable and load-bearing only for
// readability.
func Generate(spec forwarding.Spec, now time.Time) string {
	b := NewBuilder()

	ext := spec.HostInterface
	vm := spec.VMAddress.String()

	b.AddComment(headerPrefix + spec.String())
	b.AddComment("generated " + now.UTC().Format(time.RFC3339))
	b.AddBlank()

	// (a) redirect inbound external port to the VM service
	b.AddRule(fmt.Sprintf("rdr pass on %s inet proto tcp from any to any port %d -> %s port %d",
		ext, spec.ExternalPort, vm, spec.InternalPort))

	// (b) return path for replies from the VM service
	b.AddRule(fmt.Sprintf("pass out on %s inet proto tcp from %s port %d to any keep state",
		ext, vm, spec.InternalPort))

	// (c) only SYN-initiated flows may create state
	b.AddRule(fmt.Sprintf("pass in on %s inet proto tcp from any to %s port %d flags S/SA keep state",
		ext, vm, spec.InternalPort))

	// (d) VM-originated traffic leaves with the host interface address
	b.AddRule(fmt.Sprintf("nat on %s inet from %s to any -> (%s)", ext, vm, ext))

	// (e) drop FIN/PSH/URG-only packets with no established state
	// (Xmas-style stealth scans)
	b.AddRule(fmt.Sprintf("block in quick on %s inet proto tcp from any to %s port %d flags FPU/FPU",
		ext, vm, spec.InternalPort))

	switch spec.Kind {
	case forwarding.SSH:
		// bare-FIN scan variant, worth the extra rule on an exposed sshd
		b.AddRule(fmt.Sprintf("block in quick on %s inet proto tcp from any to %s port %d flags F/FSRA",
			ext, vm, spec.InternalPort))
	case forwarding.HTTP, forwarding.HTTPS:
		b.AddBlank()
		b.AddComment("consider rate limiting at the service; pf state limits can be")
		b.AddComment(fmt.Sprintf("added here, e.g.: keep state (max-src-conn-rate 100/10) on port %d",
			spec.ExternalPort))
	}

	return b.Build()
}

// ExtractSpec recovers the forwarding spec from the header comment of a
// generated ruleset. The header is the only record of the deployed spec;
// nothing else is persisted between invocations.
func ExtractSpec(ruleset string) (forwarding.Spec, error) {
	for _, line := range strings.Split(ruleset, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "# "+headerPrefix); ok {
			return forwarding.ParseSpecString(rest)
		}
	}
	return forwarding.Spec{}, fmt.Errorf("no spec header in ruleset")
}

// Normalize strips comments and blank lines and collapses whitespace so two
// rulesets can be compared ignoring the embedded timestamp and formatting.
func Normalize(ruleset string) string {
	var out []string
	for _, line := range strings.Split(ruleset, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.Join(out, "\n")
}
