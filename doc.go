// Package gtsam implements linear Gaussian factor graphs and marginal
// covariance extraction.
//
// A factor graph is assembled from Jacobian or Hessian factors over keyed
// variables (package linear), eliminated into a Bayes tree under a chosen
// factorization strategy, and then queried for single-variable or joint
// marginals (package marginals). Serialization of graphs and solutions
// lives in package encoding.
package gtsam

import "github.com/blang/semver/v4"

// Version of the library, written into serialized artifacts.
var Version = semver.MustParse("0.1.0")
