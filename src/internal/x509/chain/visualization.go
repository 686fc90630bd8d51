// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	x509certs "github.com/H0llyW00dzZ/x509-secure-channel/src/internal/x509/certs"
)

// RenderASCIITree draws the chain top-down from the leaf, marking any
// certificate whose revocation status is known and not good.
func (ch *Chain) RenderASCIITree(revocationStatus map[string]string) string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if len(ch.Certs) == 0 {
		return "No certificates in chain"
	}

	var b strings.Builder
	for i, cert := range ch.Certs {
		branch := "├── "
		if i == len(ch.Certs)-1 {
			branch = "└── "
		}

		mark := "✓"
		switch statusOf(revocationStatus, cert) {
		case "unknown", "good":
		default:
			mark = "✗"
		}

		fmt.Fprintf(&b, "%s[%s] %s (%s)\n", branch, mark, cert.Subject.CommonName, ch.role(i))
	}
	return b.String()
}

// RenderTable lists one markdown row per certificate.
func (ch *Chain) RenderTable(revocationStatus map[string]string) string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if len(ch.Certs) == 0 {
		return "No certificates to display"
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"#", "Role", "Subject", "Issuer", "Valid Until", "Key", "Revocation"})

	rows := make([][]string, 0, len(ch.Certs))
	for i, cert := range ch.Certs {
		key := "unknown"
		if algo, bits := keyDescription(cert); bits > 0 {
			key = fmt.Sprintf("%d-bit %s", bits, algo)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			ch.role(i),
			cert.Subject.CommonName,
			cert.Issuer.CommonName,
			cert.NotAfter.UTC().Format(time.DateOnly),
			key,
			statusOf(revocationStatus, cert),
		})
	}

	table.Bulk(rows)
	table.Render()
	return buf.String()
}

type (
	vizCertificate struct {
		Index              int       `json:"index"`
		Role               string    `json:"role"`
		Subject            string    `json:"subject"`
		Issuer             string    `json:"issuer"`
		SerialNumber       string    `json:"serialNumber"`
		SignatureAlgorithm string    `json:"signatureAlgorithm"`
		PublicKeyAlgorithm string    `json:"publicKeyAlgorithm"`
		KeySize            int       `json:"keySize"`
		NotBefore          time.Time `json:"notBefore"`
		NotAfter           time.Time `json:"notAfter"`
		IsCA               bool      `json:"isCA"`
		SelfSigned         bool      `json:"selfSigned"`
		RevocationStatus   string    `json:"revocationStatus"`
	}

	vizEdge struct {
		FromIndex int    `json:"fromIndex"`
		ToIndex   int    `json:"toIndex"`
		Type      string `json:"type"`
	}

	vizDocument struct {
		Timestamp     string           `json:"timestamp"`
		ChainLength   int              `json:"chainLength"`
		Certificates  []vizCertificate `json:"certificates"`
		Relationships []vizEdge        `json:"relationships"`
	}
)

// ToVisualizationJSON returns the chain as an indented JSON document with a
// node per certificate and a signed_by edge between neighbours.
func (ch *Chain) ToVisualizationJSON(revocationStatus map[string]string) ([]byte, error) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	doc := vizDocument{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ChainLength:   len(ch.Certs),
		Certificates:  make([]vizCertificate, 0, len(ch.Certs)),
		Relationships: make([]vizEdge, 0, max(len(ch.Certs)-1, 0)),
	}

	for i, cert := range ch.Certs {
		algo, bits := keyDescription(cert)
		doc.Certificates = append(doc.Certificates, vizCertificate{
			Index:              i,
			Role:               ch.role(i),
			Subject:            cert.Subject.CommonName,
			Issuer:             cert.Issuer.CommonName,
			SerialNumber:       cert.SerialNumber.String(),
			SignatureAlgorithm: cert.SignatureAlgorithm.String(),
			PublicKeyAlgorithm: algo,
			KeySize:            bits,
			NotBefore:          cert.NotBefore,
			NotAfter:           cert.NotAfter,
			IsCA:               cert.IsCA,
			SelfSigned:         ch.IsSelfSigned(cert),
			RevocationStatus:   statusOf(revocationStatus, cert),
		})
		if i > 0 {
			doc.Relationships = append(doc.Relationships, vizEdge{FromIndex: i - 1, ToIndex: i, Type: "signed_by"})
		}
	}

	return json.MarshalIndent(doc, "", "  ")
}

// role names the position of ch.Certs[i]. A lone certificate is only called
// self-signed when it actually is; a bare leaf stays an end-entity.
func (ch *Chain) role(i int) string {
	cert := ch.Certs[i]
	last := len(ch.Certs) - 1
	switch {
	case i == 0 && last == 0 && ch.IsSelfSigned(cert):
		return "Self-Signed Certificate"
	case i == 0:
		return "End-Entity Certificate"
	case i == last && ch.IsSelfSigned(cert):
		return "Root CA Certificate"
	default:
		return "Intermediate CA Certificate"
	}
}

func statusOf(statuses map[string]string, cert *x509.Certificate) string {
	if s, ok := statuses[cert.SerialNumber.String()]; ok {
		return strings.ToLower(s)
	}
	return "unknown"
}

// keyDescription reports the public key algorithm and size, or ("unknown", 0)
// for key types the store does not handle.
func keyDescription(cert *x509.Certificate) (string, int) {
	km, err := x509certs.NewPublicKeyMaterial(cert.PublicKey)
	if err != nil {
		return "unknown", 0
	}
	return km.Algorithm().String(), km.Bits()
}

// RenderVerdict renders an evaluation result as a markdown table.
//
// For a trusted verdict every certificate on the verified path is listed.
// For a rejected verdict the chain's certificates are listed with the
// failure attached to the certificate at the verdict's depth.
//
// Thread Safety: Safe for concurrent use.
func (ch *Chain) RenderVerdict(v Verdict) string {
	certs := v.Path
	if !v.Trusted() {
		certs = ch.Snapshot()
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"#", "Subject", "Issuer", "Not Before", "Not After", "Result"})

	var rows [][]string
	for i, cert := range certs {
		result := "ok"
		switch {
		case v.Trusted() && i == len(certs)-1:
			result = "anchor"
		case !v.Trusted() && i == v.Depth:
			result = v.String()
		case !v.Trusted():
			result = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			cert.Subject.CommonName,
			cert.Issuer.CommonName,
			cert.NotBefore.UTC().Format(time.DateOnly),
			cert.NotAfter.UTC().Format(time.DateOnly),
			result,
		})
	}

	table.Bulk(rows)
	table.Render()

	buf.WriteString("\nVerdict: " + v.String() + "\n")
	return buf.String()
}
