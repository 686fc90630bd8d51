// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/chain"
)

// verifyOptions holds the verify command flags.
type verifyOptions struct {
	anchors    string
	identity   string
	usage      string
	format     string
	remote     string
	fetch      bool
	revocation bool
	strict     bool
	timeout    time.Duration

	bundle            string
	intermediatesOnly bool
}

var usages = map[string][]x509.ExtKeyUsage{
	"server": {x509.ExtKeyUsageServerAuth},
	"client": {x509.ExtKeyUsageClientAuth},
	"any":    nil,
}

func (a *app) verifyCommand() *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [CHAIN_FILE]",
		Short: "Evaluate a certificate chain against trust anchors",
		Long: `Evaluate a certificate chain (leaf first) against the trust anchors in --anchors.

The chain is read from CHAIN_FILE, or fetched from a TLS endpoint with --remote.
The command exits non-zero unless the chain is trusted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.anchors, "anchors", "", "file holding the trust anchor certificates (required)")
	flags.StringVar(&opts.identity, "identity", "", "DNS name or IP address the leaf must cover")
	flags.StringVar(&opts.usage, "usage", "server", "required extended key usage: server, client or any")
	flags.StringVarP(&opts.format, "format", "f", "table", "output format: table, details, tree or json")
	flags.StringVar(&opts.remote, "remote", "", "fetch the chain from HOST[:PORT] instead of a file")
	flags.BoolVar(&opts.fetch, "fetch", false, "download missing intermediates from the AIA extension")
	flags.BoolVar(&opts.revocation, "revocation", false, "check revocation over OCSP, then CRL")
	flags.BoolVar(&opts.strict, "strict", false, "with --revocation, reject certificates whose status is unknown")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "network timeout")
	flags.StringVar(&opts.bundle, "bundle", "", "write the completed chain, anchor included, as PEM to this file")
	flags.BoolVar(&opts.intermediatesOnly, "intermediates-only", false, "with --bundle, write only the intermediate certificates")
	_ = cmd.MarkFlagRequired("anchors")
	return cmd
}

func (a *app) runVerify(cmd *cobra.Command, args []string, opts *verifyOptions) error {
	ctx := cmd.Context()
	codec := x509certs.New()

	keyUsages, ok := usages[opts.usage]
	if !ok {
		return fmt.Errorf("unknown usage %q", opts.usage)
	}
	switch opts.format {
	case "table", "details", "tree", "json":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.format)
	}

	var (
		ch       *x509chain.Chain
		identity = opts.identity
		err      error
	)
	switch {
	case opts.remote != "":
		host, port, err := splitHostPort(opts.remote, 443)
		if err != nil {
			return err
		}
		if ch, err = x509chain.FetchRemoteChain(ctx, host, port, opts.timeout, a.version); err != nil {
			return err
		}
		if identity == "" {
			identity = host
		}
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		certs, err := codec.DecodeMultiple(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if ch, err = x509chain.NewFromCertificates(certs, a.version); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
	default:
		return ErrInputFileRequired
	}

	if opts.fetch {
		ch.HTTPConfig.Timeout = opts.timeout
		if err := ch.FetchCertificate(ctx); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(opts.anchors)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.anchors, err)
	}
	roots, err := codec.DecodeMultiple(data)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.anchors, err)
	}
	anchors, err := x509chain.NewAnchorSet(roots...)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.anchors, err)
	}

	evalOpts := x509chain.EvaluateOptions{
		Anchors:   anchors,
		Identity:  identity,
		KeyUsages: keyUsages,
	}
	var checker x509chain.ChainChecker
	if opts.revocation {
		httpConfig := x509chain.NewHTTPConfig(a.version)
		httpConfig.Timeout = opts.timeout
		checker = x509chain.ChainChecker{
			x509chain.NewOCSPChecker(httpConfig),
			x509chain.NewCRLChecker(httpConfig, x509chain.NewCRLCache(nil)),
		}
		evalOpts.Revocation = &x509chain.RevocationPolicy{Checker: checker, Strict: opts.strict}
	}

	verdict := ch.Evaluate(ctx, evalOpts)

	// Renderers and the bundle show the anchor the chain ends in.
	ch.AddAnchor(anchors)

	var statuses map[string]string
	if checker != nil && opts.format != "table" {
		statuses = ch.RevocationStatuses(ctx, checker)
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "table":
		fmt.Fprint(out, ch.RenderVerdict(verdict))
	case "details":
		fmt.Fprint(out, ch.RenderTable(statuses))
		fmt.Fprintf(out, "\nVerdict: %s\n", verdict)
	case "tree":
		fmt.Fprintln(out, ch.RenderASCIITree(statuses))
		fmt.Fprintf(out, "Verdict: %s\n", verdict)
	case "json":
		doc, err := ch.ToVisualizationJSON(statuses)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(doc))
	}

	if opts.bundle != "" {
		certs := ch.Snapshot()
		if opts.intermediatesOnly {
			certs = ch.FilterIntermediates()
		}
		if err := os.WriteFile(opts.bundle, codec.EncodeMultiplePEM(certs), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.bundle, err)
		}
	}

	if !verdict.Trusted() {
		return fmt.Errorf("%w: %w", ErrNotTrusted, verdict.Err)
	}
	return nil
}

// splitHostPort accepts HOST or HOST:PORT, including bracketed IPv6 literals.
func splitHostPort(addr string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present.
		return addr, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}
