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

package attestation

import (
	"time"

	slsa1 "github.com/in-toto/attestation/go/predicates/provenance/v1"
	v1 "github.com/in-toto/attestation/go/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"sigs.k8s.io/metate/pkg/run"
)

// SLSAPredicateV1 renders the provenance in the SLSA v1 schema for
// consumers that no longer accept v0.2 statements.
type SLSAPredicateV1 struct {
	slsa1.Provenance
}

func NewSLSAV1Predicate() *SLSAPredicateV1 {
	return &SLSAPredicateV1{
		Provenance: slsa1.Provenance{
			BuildDefinition: &slsa1.BuildDefinition{
				BuildType: BuildType,
				ExternalParameters: &structpb.Struct{
					Fields: map[string]*structpb.Value{},
				},
				InternalParameters: &structpb.Struct{
					Fields: map[string]*structpb.Value{},
				},
				ResolvedDependencies: []*v1.ResourceDescriptor{},
			},
			RunDetails: &slsa1.RunDetails{
				Builder: &slsa1.Builder{
					Id:      BuilderID,
					Version: map[string]string{},
				},
				Metadata: &slsa1.BuildMetadata{
					InvocationId: "",
					StartedOn:    &timestamppb.Timestamp{},
					FinishedOn:   &timestamppb.Timestamp{},
				},
				Byproducts: []*v1.ResourceDescriptor{},
			},
		},
	}
}

func (pred *SLSAPredicateV1) SetInvocationID(id string) {
	pred.RunDetails.Metadata.InvocationId = id
}

// SetConfigSource records the workflow source as an external parameter
func (pred *SLSAPredicateV1) SetConfigSource(src *v1.ResourceDescriptor) {
	source := src.GetUri()
	if h, ok := src.GetDigest()["sha1"]; ok && h != "" {
		source += "@" + h
	}
	pred.BuildDefinition.ExternalParameters.Fields["source"] = structpb.NewStringValue(source)
}

func (pred *SLSAPredicateV1) SetEntryPoint(ep string) {
	pred.BuildDefinition.ExternalParameters.Fields["entryPoint"] = structpb.NewStringValue(ep)
}

func (pred *SLSAPredicateV1) AddDependency(dep *v1.ResourceDescriptor) {
	pred.BuildDefinition.ResolvedDependencies = append(
		pred.BuildDefinition.ResolvedDependencies, dep,
	)
}

func (pred *SLSAPredicateV1) SetStartedOn(d *time.Time) {
	if d == nil {
		pred.RunDetails.Metadata.StartedOn = nil
		return
	}
	pred.RunDetails.Metadata.StartedOn = timestamppb.New(*d)
}

func (pred *SLSAPredicateV1) SetFinishedOn(d *time.Time) {
	if d == nil {
		pred.RunDetails.Metadata.FinishedOn = nil
		return
	}
	pred.RunDetails.Metadata.FinishedOn = timestamppb.New(*d)
}

// NewFromRunV1 assembles the provenance of a finished run in the SLSA
// v1 schema, mirroring what NewFromRun records in v0.2 terms.
func NewFromRunV1(r *run.Run, sourceURL, sourceDigest string) *Attestation {
	att := New().SLSAv1()
	pred, ok := att.Predicate.(*SLSAPredicateV1)
	if !ok {
		return att
	}

	for _, artifact := range r.Artifacts {
		att.AddSubject(artifact.Path, artifact.Checksum)
	}

	pred.SetInvocationID(r.ID)
	pred.SetEntryPoint(r.Workflow)
	pred.BuildDefinition.ExternalParameters.Fields["ref"] = structpb.NewStringValue(r.Ref)

	if sourceURL != "" {
		src := &v1.ResourceDescriptor{
			Uri:    sourceURL,
			Digest: map[string]string{},
		}
		if sourceDigest != "" {
			src.Digest["sha1"] = sourceDigest
		}
		pred.SetConfigSource(src)
		pred.AddDependency(src)
	}

	if !r.StartTime.IsZero() {
		start := r.StartTime
		pred.SetStartedOn(&start)
	}
	if !r.EndTime.IsZero() {
		end := r.EndTime
		pred.SetFinishedOn(&end)
	}
	return att
}

func (pred *SLSAPredicateV1) MarshalJSON() ([]byte, error) {
	return protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}.Marshal(pred)
}

func (pred *SLSAPredicateV1) Type() string {
	return "https://slsa.dev/provenance/v1"
}
