package scanner

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/steveyegge/debtneg/internal/types"
)

// signalRule casts one vote for a repo type when it matches.
type signalRule struct {
	vote types.RepoType
	name string
	re   *regexp.Regexp
}

func wordRule(vote types.RepoType, keyword string) signalRule {
	return signalRule{
		vote: vote,
		name: keyword,
		re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`),
	}
}

// contentRules match against captured file content.
var contentRules = []signalRule{
	wordRule(types.RepoML, "tensorflow"),
	wordRule(types.RepoML, "sklearn"),
	wordRule(types.RepoML, "scikit-learn"),
	wordRule(types.RepoML, "torch"),
	wordRule(types.RepoML, "keras"),
	wordRule(types.RepoML, "xgboost"),
	wordRule(types.RepoML, "mlflow"),
	wordRule(types.RepoML, "model.pkl"),
	wordRule(types.RepoML, "feature_engineering"),

	wordRule(types.RepoDataPipeline, "airflow"),
	wordRule(types.RepoDataPipeline, "kafka"),
	wordRule(types.RepoDataPipeline, "spark"),
	wordRule(types.RepoDataPipeline, "pyspark"),
	wordRule(types.RepoDataPipeline, "dag"),
	wordRule(types.RepoDataPipeline, "etl"),
	wordRule(types.RepoDataPipeline, "luigi"),
}

// mlFileNames are file base names that indicate a training codebase.
var mlFileNames = map[string]bool{
	"train.py":               true,
	"model.py":               true,
	"feature_engineering.py": true,
}

// manifestNames are build manifests of conventional software services.
var manifestNames = map[string]bool{
	"pom.xml":       true,
	"package.json":  true,
	"build.gradle":  true,
	"go.mod":        true,
	"Cargo.toml":    true,
	"Gemfile":       true,
	"composer.json": true,
}

// pipelineDirHints match top-level directory names of data pipeline repos.
var pipelineDirHints = []string{"airflow", "kafka", "spark", "pipeline", "etl"}

// DetectRepoType votes on the repository type. Signals are collected into a set
// and only the set of voting categories decides the outcome, so the result does
// not depend on file order:
//
//	no signals           -> swe
//	one category voted   -> that category
//	several categories   -> mixed
//
// The sorted signal list ("ml:tensorflow", "swe:pom.xml", ...) is returned for traceability.
func DetectRepoType(files []types.SnapshotFile, dirs []string) (types.RepoType, []string) {
	signals := make(map[string]types.RepoType)

	for _, f := range files {
		base := path.Base(f.Path)
		if mlFileNames[base] {
			signals["ml:"+base] = types.RepoML
		}
		if manifestNames[base] {
			signals["swe:"+base] = types.RepoSWE
		}
		for _, rule := range contentRules {
			key := string(rule.vote) + ":" + rule.name
			if _, done := signals[key]; done {
				continue
			}
			if rule.re.MatchString(f.Content) {
				signals[key] = rule.vote
			}
		}
	}

	for _, d := range dirs {
		top := strings.ToLower(topLevel(d))
		for _, hint := range pipelineDirHints {
			if strings.Contains(top, hint) {
				signals["data_pipeline:dir/"+top] = types.RepoDataPipeline
			}
		}
	}

	votes := make(map[types.RepoType]int)
	names := make([]string, 0, len(signals))
	for name, vote := range signals {
		votes[vote]++
		names = append(names, name)
	}
	sort.Strings(names)

	switch len(votes) {
	case 0:
		return types.RepoSWE, names
	case 1:
		for vote := range votes {
			return vote, names
		}
	}
	return types.RepoMixed, names
}
