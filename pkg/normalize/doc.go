// Package normalize turns hosting and backend API payloads into the dashboard view model.
//
// Every function is pure apart from the values drawn from an Estimator, and
// absent input yields an empty result rather than an error.
package normalize
