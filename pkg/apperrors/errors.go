package apperrors

import "errors"

var (
	// ErrModelInvalid indicates a semantic-model document failed validation at load time.
	ErrModelInvalid = errors.New("semantic model invalid")
	// ErrUnknownEntity indicates a request referenced a table, dimension, fact,
	// or filter that the loaded model does not declare.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrInvalidRequest indicates the request shape is unusable (unknown names,
	// no resolvable content).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnreachable indicates two requested tables have no connecting path in
	// the relationship graph. The engine never fabricates a cross join.
	ErrUnreachable = errors.New("tables unreachable")
	// ErrAmbiguousAggregation indicates a fact was referenced outside an
	// aggregation context without a declared default aggregation.
	ErrAmbiguousAggregation = errors.New("ambiguous aggregation")
	// ErrNoMatchAndUnresolvable indicates no verified query matched and the
	// request carried nothing the generator could resolve.
	ErrNoMatchAndUnresolvable = errors.New("no verified match and request unresolvable")
	// ErrUnsafeLiteral indicates a request-supplied literal failed the SQL
	// injection screen and was refused.
	ErrUnsafeLiteral = errors.New("unsafe literal value")
)
