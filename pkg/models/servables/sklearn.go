package servables

import (
	"fmt"
	"strings"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/argtype"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/pickle"
	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/utils/pointer"
)

type sklearnOption struct {
	classes      []string
	isClassifier *bool
}

type SklearnOption func(*sklearnOption) *sklearnOption

// WithClasses names the output classes of a classification model.
func WithClasses(names ...string) SklearnOption {
	return func(o *sklearnOption) *sklearnOption {
		o.classes = names
		return o
	}
}

// WithClassCount names the output classes "Class 1" .. "Class N" when
// only their number is known.
func WithClassCount(n int) SklearnOption {
	return func(o *sklearnOption) *sklearnOption {
		classes := make([]string, n)
		for i := range classes {
			classes[i] = fmt.Sprintf("Class %d", i+1)
		}
		o.classes = classes
		return o
	}
}

// AsClassifier overrides the estimator-name based classifier detection.
func AsClassifier(isClassifier bool) SklearnOption {
	return func(o *sklearnOption) *sklearnOption {
		o.isClassifier = &isClassifier
		return o
	}
}

// estimator class names that do not end in "Classifier" but classify
// all the same
var classifierNames = map[string]struct{}{
	"SVC": {}, "NuSVC": {}, "LinearSVC": {},
	"LogisticRegression": {}, "LogisticRegressionCV": {},
	"GaussianNB": {}, "MultinomialNB": {}, "BernoulliNB": {}, "ComplementNB": {},
	"Perceptron": {}, "LinearDiscriminantAnalysis": {}, "QuadraticDiscriminantAnalysis": {},
}

func looksLikeClassifier(className string) bool {
	if strings.HasSuffix(className, "Classifier") {
		return true
	}
	_, ok := classifierNames[className]
	return ok
}

// NewScikitLearn describes a pickled scikit-learn estimator.
//
// The pickle is scanned, not loaded: the estimator class, the recorded
// scikit-learn version and joblib wrapping all sit in the opcode stream.
// The model is assumed to take fixed-length records, nInputColumns
// values each.
func NewScikitLearn(path string, nInputColumns int, options ...SklearnOption) (*Builder, error) {
	opt := &sklearnOption{}
	for _, o := range options {
		opt = o(opt)
	}

	sum, err := pickle.ScanFile(path)
	if err != nil {
		return nil, err
	}
	origin, ok := sum.Origin()
	if !ok {
		return nil, fmt.Errorf("%w: no estimator class in %s", ErrBadServable, path)
	}

	// scikit-learn records its version next to the estimator state
	// since 0.18
	version := sum.SklearnVersion
	if version == "" {
		version = "pre-0.18"
	}

	isClassifier := looksLikeClassifier(origin.Name)
	if opt.isClassifier != nil {
		isClassifier = *opt.isClassifier
	}
	if isClassifier && len(opt.classes) == 0 {
		return nil, fmt.Errorf(
			"%w: classes (or at least their number) must be given for classifiers", ErrBadServable)
	}

	method := "predict"
	if isClassifier {
		method = "predict_proba"
	}

	b, err := newBuilder("sklearn.ScikitLearnServable", "Scikit-learn estimator")
	if err != nil {
		return nil, err
	}

	details := b.runDetails()
	details["method_name"] = method

	serialization := "pickle"
	if sum.IsJoblib() {
		serialization = "joblib"
	}
	b.setOption("serialization_method", serialization)
	b.setOption("is_classifier", isClassifier)
	if len(opt.classes) != 0 {
		b.setOption("classes", opt.classes)
	}

	s := b.servable()
	s.ModelType = origin.Name
	s.ModelSummary = origin.String()

	if version != "pre-0.18" {
		if err := b.AddRequirement("scikit-learn", version); err != nil {
			return nil, err
		}
	}
	b.AddFileAs("model", path)

	input, err := argtype.NDArrayOf(
		fmt.Sprintf(
			"List of records to evaluate with model. Each record is a list of %d variables.",
			nInputColumns),
		argtype.NewShape(argtype.Unbound(), argtype.Fixed(nInputColumns)),
		pointer.Ref(argtype.ArgumentType{Type: argtype.Float}),
	)
	if err != nil {
		return nil, err
	}
	if err := b.SetInputs(input); err != nil {
		return nil, err
	}

	output := argtype.ArgumentType{}
	if method == "predict_proba" {
		output, err = argtype.NDArrayOf(
			fmt.Sprintf("Probabilities for membership in each of %d classes", len(opt.classes)),
			argtype.NewShape(argtype.Unbound(), argtype.Fixed(len(opt.classes))),
			pointer.Ref(argtype.ArgumentType{Type: argtype.Float}),
		)
	} else {
		output, err = argtype.NDArrayOf(
			"Predictions of the machine learning model.",
			argtype.NewShape(argtype.Unbound()),
			pointer.Ref(argtype.ArgumentType{Type: argtype.Float}),
		)
	}
	if err != nil {
		return nil, err
	}
	if err := b.SetOutputs(output); err != nil {
		return nil, err
	}

	return b, nil
}
