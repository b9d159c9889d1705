package argtype

import (
	"errors"
	"fmt"
	"log"
	"time"
)

var ErrBadValue = errors.New("value does not match argument type")

// warning delivered when a boolean is (perhaps) incorrectly accepted
// where an integer is expected.
const boolSubIntMsg = "[WARNING] Boolean input has been validated as type Integer, this is likely unintended."

// Check validates a decoded JSON value against the node.
//
// The value is expected in encoding/json conventions: bool, float64,
// string, []any and map[string]any. ndarrays are nested lists; unbound
// dims match any extent. A boolean in an integer slot is accepted with
// a warning through logger. Extra dict keys are tolerated, missing
// ones are not.
func (a ArgumentType) Check(value any, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	warned := false
	return a.check(value, logger, &warned)
}

func (a ArgumentType) check(value any, logger *log.Logger, warned *bool) error {
	switch a.Type {
	case Boolean:
		if _, ok := value.(bool); !ok {
			return badValue(a.Type, value)
		}
		return nil

	case Integer:
		if _, ok := value.(bool); ok {
			// bool is a subtype of int in the origin runtime.
			if !*warned {
				logger.Println(boolSubIntMsg)
				*warned = true
			}
			return nil
		}
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			return badValue(a.Type, value)
		}
		return nil

	case Float, Number, Complex:
		if _, ok := value.(float64); !ok {
			return badValue(a.Type, value)
		}
		return nil

	case String, File:
		if _, ok := value.(string); !ok {
			return badValue(a.Type, value)
		}
		return nil

	case Datetime:
		s, ok := value.(string)
		if !ok {
			return badValue(a.Type, value)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("%w: expected datetime, received %q", ErrBadValue, s)
		}
		return nil

	case Timedelta:
		switch value.(type) {
		case float64, string:
			return nil
		}
		return badValue(a.Type, value)

	case PythonObject:
		if value == nil {
			return badValue(a.Type, value)
		}
		return nil

	case List:
		items, ok := value.([]any)
		if !ok {
			return badValue(a.Type, value)
		}
		for i, item := range items {
			if err := a.ItemType.check(item, logger, warned); err != nil {
				return fmt.Errorf("%w at index %d", err, i)
			}
		}
		return nil

	case Tuple:
		items, ok := value.([]any)
		if !ok {
			return badValue(a.Type, value)
		}
		if len(items) != len(a.ElementTypes) {
			return fmt.Errorf(
				"%w: expected tuple of %d elements, received %d",
				ErrBadValue, len(a.ElementTypes), len(items),
			)
		}
		for i, item := range items {
			if err := a.ElementTypes[i].check(item, logger, warned); err != nil {
				return fmt.Errorf("%w at index %d", err, i)
			}
		}
		return nil

	case NDArray:
		return a.checkNDArray(value, a.Shape, logger, warned)

	case Dict:
		dct, ok := value.(map[string]any)
		if !ok {
			return badValue(a.Type, value)
		}
		for key, prop := range a.Properties {
			v, ok := dct[key]
			if !ok {
				return fmt.Errorf("%w: expected dictionary key (%s) to be present", ErrBadValue, key)
			}
			if err := prop.check(v, logger, warned); err != nil {
				return fmt.Errorf(`%w at key "%s"`, err, key)
			}
		}
		return nil
	}

	return fmt.Errorf(`%w: unknown type "%s"`, ErrInvalidType, a.Type)
}

// ndarrays come in as nested lists, one nesting level per dim.
func (a ArgumentType) checkNDArray(value any, shape Shape, logger *log.Logger, warned *bool) error {
	if len(shape) == 0 {
		// scalar tensor. Item check only, when an item type is given.
		if a.ItemType != nil {
			return a.ItemType.check(value, logger, warned)
		}
		return nil
	}

	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: expected ndarray of shape %s", ErrBadValue, a.Shape)
	}
	if n, fixed := shape[0].Fixed(); fixed && n != len(items) {
		return fmt.Errorf(
			"%w: expected ndarray of shape %s, received extent %d",
			ErrBadValue, a.Shape, len(items),
		)
	}
	for _, item := range items {
		if err := a.checkNDArray(item, shape[1:], logger, warned); err != nil {
			return err
		}
	}
	return nil
}

func badValue(expected Kind, value any) error {
	return fmt.Errorf("%w: expected %s, received %T", ErrBadValue, expected, value)
}
