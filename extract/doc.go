// Package extract turns a finished discussion into structured insights.
//
// The first agent acts as rapporteur: it is asked to consolidate the
// discussion before the engine performs an objective-directed extraction from
// its accumulated state. Independently of the engine, simple heuristic
// statistics are computed from the interaction records: participation counts,
// per-agent engagement scores, keyword-bucket sentiment and a fixed candidate
// theme list. The statistics are deliberately crude; they are transparency
// aids, not analysis.
package extract
