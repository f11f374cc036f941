package policy

// DefaultConfigYAML returns a commented YAML document for init-config.
// It decodes to the same values as DefaultConfig.
func DefaultConfigYAML() string {
	return `# metadag governance configuration
# Generated by: metadag init-config
#
# Pipeline order (cannot be changed):
#   1. Translate text into an event (anchors, policy clusters, risk)
#   2. Arbitrate candidates (seed, traceability, veto, weighting, threshold)
#   3. Classify the decision (N, V, E, F/I, R, S, A)
#   4. Score drift (passive, never blocks)
#   5. Append to the ledger
#
# Changes apply to new decisions only. Existing ledger nodes are never re-evaluated.

version: "1.0.0"

translator:
  protocol_version: V4.5
  # content: marker hashes the text only, so resubmissions classify as R.
  # nonce:   marker hashes text and timestamp, so R never fires.
  marker_mode: content
  # A match on this rule escalates risk to HIGH and vetoes derived candidates.
  risk_control_rule: PEC-3
  anchors:
    - name: collab
      keywords: [meeting, sync, collaboration, review, calendar]
    - name: finance
      keywords: [budget, invoice, payment, reimbursement, fund]
    - name: risk
      keywords: [exploit, vulnerability, leak, drift, failure, veto]
  # Every rule is evaluated in order and all matches are kept.
  # keywords: case-insensitive substring match
  # expression: CEL boolean over text and lower, e.g. lower.contains("wire")
  rules:
    - name: PEC-6
      keywords: [sync, collab, external, calendar, review]
    - name: PEC-1
      keywords: [budget, finance, payment, fund]
    - name: PEC-3
      keywords: [leak, vulnerability, drift, veto]

arbitration:
  trusted_root: SEED-CORE
  trusted_aliases: [seed]
  # max_loss keeps weight <= bound and accepts the lowest weight.
  # min_score keeps weight >= bound and accepts the highest weight.
  mode: max_loss
  bound: 1.0
  veto_class: IMMUNITY_LAW
  # Weight of the candidate derived from an event, by risk level.
  candidate_weights:
    LOW: 0.05
    MEDIUM: 0.25
    HIGH: 0.75
    CRITICAL: 1.0
    UNKNOWN: 0.5

classifier:
  system_task_types: [SYSTEM_META_GOVERNANCE]

drift:
  anomaly_threshold: 0.6
  # Entries at or above this score are also written to state_dir/drift_snapshots.
  snapshot_threshold: 0.8

storage:
  # json | sqlite
  driver: json
  # Empty means ~/.metadag/state
  state_dir: ""
  sqlite_path: ""

# Webhooks notified on governance events:
# hard_veto | external_failure | drift_anomaly | state_tamper
#alerts:
#  - url: https://hooks.slack.com/services/T000/B000/XXXX
#    format: slack        # generic | slack | pagerduty
#    events: [hard_veto, drift_anomaly]
`
}
