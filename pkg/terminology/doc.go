// Package terminology resolves answerValueSet canonicals into answer options.
//
// A Resolver stamps every expansion request with a monotonically increasing token per
// publisher and value set. Only the result of the latest request is published; results
// of superseded requests are discarded, so a form never observes an out-of-order
// expansion. One Resolver may serve many forms at once.
package terminology
