// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

// writeStructured encodes v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// requestView is the printable form of a recovery request. Shard contents
// are never printed.
type requestView struct {
	RequestID         string            `json:"request_id" yaml:"request_id"`
	State             string            `json:"state" yaml:"state"`
	Threshold         int               `json:"threshold" yaml:"threshold"`
	Shards            int               `json:"shards" yaml:"shards"`
	InitiatedAt       time.Time         `json:"initiated_at" yaml:"initiated_at"`
	WaitingPeriodEnds time.Time         `json:"waiting_period_ends" yaml:"waiting_period_ends"`
	Remaining         string            `json:"remaining,omitempty" yaml:"remaining,omitempty"`
	Guardians         map[string]string `json:"guardians" yaml:"guardians"`
	AbortReason       string            `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	OverrideBy        string            `json:"override_by,omitempty" yaml:"override_by,omitempty"`
	OverrideReason    string            `json:"override_reason,omitempty" yaml:"override_reason,omitempty"`
}

func newRequestView(req *recovery.Request, remaining time.Duration) requestView {
	v := requestView{
		RequestID:         req.RequestID,
		State:             req.State.String(),
		Threshold:         req.Threshold,
		Shards:            len(req.CollectedShards),
		InitiatedAt:       req.InitiatedAt,
		WaitingPeriodEnds: req.WaitingPeriodEnds,
		Guardians:         make(map[string]string, len(req.GuardianResponses)),
		AbortReason:       req.AbortReason,
	}
	if req.State == recovery.WaitingPeriod && remaining > 0 {
		v.Remaining = remaining.Round(time.Second).String()
	}
	for id, resp := range req.GuardianResponses {
		v.Guardians[id] = resp.String()
	}
	if req.Override != nil {
		v.OverrideBy = req.Override.Operator
		v.OverrideReason = req.Override.Reason
	}
	return v
}

func writeRequestText(w io.Writer, v requestView) {
	fmt.Fprintf(w, "Request %s\n", v.RequestID)
	fmt.Fprintf(w, "  state:      %s\n", v.State)
	fmt.Fprintf(w, "  shards:     %d of %d\n", v.Shards, v.Threshold)
	fmt.Fprintf(w, "  waiting:    until %s", v.WaitingPeriodEnds.Format(time.RFC3339))
	if v.Remaining != "" {
		fmt.Fprintf(w, " (%s left)", v.Remaining)
	}
	fmt.Fprintln(w)
	if v.AbortReason != "" {
		fmt.Fprintf(w, "  aborted:    %s\n", v.AbortReason)
	}
	if v.OverrideBy != "" {
		fmt.Fprintf(w, "  override:   %s (%s)\n", v.OverrideBy, v.OverrideReason)
	}

	ids := make([]string, 0, len(v.Guardians))
	for id := range v.Guardians {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  guardian %s: %s\n", id, v.Guardians[id])
	}
}
