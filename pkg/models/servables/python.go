package servables

import (
	"fmt"

	"github.com/dlhub-argonne/dlhub-sdk-go/pkg/inspect/pickle"
)

// NewPythonClassMethod describes calling a method on a pickled Python
// object. The pickle is scanned for the class of its root object; the
// shim needs the class to rebuild the object at serving time.
func NewPythonClassMethod(picklePath string, method string, kwargs map[string]any) (*Builder, error) {
	b, err := newBuilder("python.PythonClassMethodServable", "Python class method")
	if err != nil {
		return nil, err
	}

	sum, err := pickle.ScanFile(picklePath)
	if err != nil {
		return nil, err
	}
	origin, ok := sum.Origin()
	if !ok {
		return nil, fmt.Errorf("%w: no class reference in %s", ErrBadServable, picklePath)
	}

	b.setRunParameters(kwargs)
	details := b.runDetails()
	details["method_name"] = method
	details["class_name"] = origin.String()

	b.AddFileAs("pickle", picklePath)
	return b, nil
}

// NewPythonStaticMethod describes calling a free function, like
// numpy.sqrt: a module name plus a function name. With autobatch set
// the shim maps the function over a list of inputs.
func NewPythonStaticMethod(module string, method string, autobatch bool, kwargs map[string]any) (*Builder, error) {
	b, err := newBuilder("python.PythonStaticMethodServable", "Python static method")
	if err != nil {
		return nil, err
	}

	b.setRunParameters(kwargs)
	details := b.runDetails()
	details["method_name"] = method
	details["module"] = module
	details["autobatch"] = autobatch

	return b, nil
}
