package qc

import "strconv"

// External engine binaries. bamstats computes the per-alignment metrics,
// verifyBamID estimates contamination, qcreport renders the document.
const (
	StatsProgram  = "bamstats"
	ContamProgram = "verifyBamID"
	ReportProgram = "qcreport"
)

// Stage names used in errors and logs.
const (
	stageStats  = "stats"
	stageContam = "contamination"
	stageReport = "report"
)

// statsArgs builds the bamstats invocation: reference, window size, one
// named output per artifact, and the alignment last. Paired-end runs add
// --paired together with the inserts output.
func statsArgs(cfg Config, arts *ArtifactSet) []string {
	args := []string{
		"-r", cfg.Reference,
		"-w", strconv.Itoa(cfg.WindowSize),
		"--summary", arts.Path(RoleSummary),
		"--nucleotides", arts.Path(RoleNucleotides),
		"--quality", arts.Path(RoleQuality),
		"--coverage", arts.Path(RoleCoverage),
		"--gc", arts.Path(RoleGC),
		"--lengths", arts.Path(RoleLengths),
		"--clipping", arts.Path(RoleClipping),
		"--mismatch", arts.Path(RoleMismatch),
		"--indel", arts.Path(RoleIndel),
	}
	if inserts := arts.Get(RoleInserts); inserts != nil {
		args = append(args, "--paired", "--inserts", inserts.Path)
	}
	args = append(args, cfg.Alignment)
	return args
}

// contamArgs builds the verifyBamID invocation. The behavioural flags
// are fixed: best estimate, no phone-home, precise mode, no chip-specific
// filtering.
func contamArgs(cfg Config, outPrefix string, cutoff int) []string {
	return []string{
		"--vcf", cfg.Genotypes,
		"--bam", cfg.Alignment,
		"--out", outPrefix,
		"--maxDepth", strconv.Itoa(cutoff),
		"--best",
		"--noPhoneHome",
		"--precise",
		"--chip-none",
	}
}

// reportArgs builds the qcreport invocation from every artifact the run
// produced. The inserts input appears only in paired-end mode and the
// contamination input only when the sub-pipeline ran.
func reportArgs(cfg Config, arts *ArtifactSet) []string {
	args := []string{
		"--summary", arts.Path(RoleSummary),
		"--lengths", arts.Path(RoleLengths),
		"--nucleotides", arts.Path(RoleNucleotides),
		"--quality", arts.Path(RoleQuality),
		"--gc", arts.Path(RoleGC),
		"--clipping", arts.Path(RoleClipping),
		"--mismatch", arts.Path(RoleMismatch),
		"--indel", arts.Path(RoleIndel),
		"--coverage", arts.Path(RoleCoverage),
	}
	if inserts := arts.Get(RoleInserts); inserts != nil {
		args = append(args, "--inserts", inserts.Path)
	}
	if contam := arts.Get(RoleContamination); contam != nil {
		args = append(args, "--contamination", contam.Path)
	}
	args = append(args, "-o", cfg.Report)
	return args
}

// reportInputs lists the artifact roles the report stage reads, so the
// writer/reader contract can be checked before the stage is invoked.
func reportInputs(arts *ArtifactSet) []Role {
	roles := []Role{
		RoleSummary, RoleLengths, RoleNucleotides, RoleQuality, RoleGC,
		RoleClipping, RoleMismatch, RoleIndel, RoleCoverage,
	}
	if arts.Get(RoleInserts) != nil {
		roles = append(roles, RoleInserts)
	}
	if arts.Get(RoleContamination) != nil {
		roles = append(roles, RoleContamination)
	}
	return roles
}
