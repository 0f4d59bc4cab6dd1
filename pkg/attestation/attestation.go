/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package attestation renders finished release runs as signed SLSA
// provenance statements.
package attestation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	intoto "github.com/in-toto/in-toto-golang/in_toto"
	slsa "github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/v0.2"
)

// Predicate is the provenance payload of an attestation
type Predicate interface {
	Type() string
}

type Attestation struct {
	intoto.StatementHeader
	Predicate Predicate `json:"predicate"`
}

func New() *Attestation {
	attestation := &Attestation{
		StatementHeader: intoto.StatementHeader{
			Type:    intoto.StatementInTotoV01,
			Subject: []intoto.Subject{},
		},
	}
	return attestation
}

// SLSA initializes the attestation with an empty SLSA v0.2 predicate
func (att *Attestation) SLSA() *Attestation {
	pred := NewSLSAPredicate()
	att.PredicateType = slsa.PredicateSLSAProvenance
	att.Predicate = &pred
	return att
}

// SLSAv1 initializes the attestation with an empty SLSA v1 predicate
func (att *Attestation) SLSAv1() *Attestation {
	pred := NewSLSAV1Predicate()
	att.PredicateType = pred.Type()
	att.Predicate = pred
	return att
}

// AddSubject registers an artifact the attestation speaks about
func (att *Attestation) AddSubject(name string, checksums map[string]string) {
	digest := map[string]string{}
	for algo, val := range checksums {
		digest[normalizeAlgo(algo)] = val
	}
	att.Subject = append(att.Subject, intoto.Subject{
		Name:   name,
		Digest: digest,
	})
}

// normalizeAlgo lowercases the hash algorithm labels the artifact
// snapshots use into in-toto digest keys
func normalizeAlgo(algo string) string {
	switch algo {
	case "SHA256", "sha256":
		return "sha256"
	case "SHA512", "sha512":
		return "sha512"
	case "MD5", "md5":
		return "md5"
	default:
		return algo
	}
}

func (att *Attestation) ToJSON() ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if err := enc.Encode(att); err != nil {
		return nil, fmt.Errorf("encoding attestation: %w", err)
	}
	return b.Bytes(), nil
}

// Write dumps the attestation to a file
func (att *Attestation) Write(path string) error {
	data, err := att.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("writing attestation file: %w", err)
	}
	return nil
}
