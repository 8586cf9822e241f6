// Package linear implements Gaussian factor graphs over vector-valued
// variables: block-partitioned augmented matrices, Jacobian and Hessian
// factors, and variable elimination into Bayes nets and Bayes trees
// under either a Cholesky or a QR factorization strategy.
package linear
