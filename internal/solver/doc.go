// Package solver computes the complex frequency-domain thermal response
// of a layered stack heated and probed by Gaussian spots.
//
// For each spatial frequency k the per-layer thermal wavenumber is
// γ = sqrt((Kr·k² + iωC)/Kz), and layer impedances are folded iteratively
// from the semi-infinite substrate termination 1/(Kz·γ) up to the surface
// through the tanh layer-addition rule, inserting a 1/G series resistance
// at each finite interface. The surface impedance is then weighted by the
// pump/probe Gaussian envelope exp(-(r_p²+r_s²)k²/8), the beam-offset
// factor J0(k·d), and integrated over k by Gauss-Legendre quadrature.
//
// Two arithmetic backends implement the impedance fold. The fast backend
// works in complex128 and evaluates the whole k grid per call. Its known
// failure mode is the tanh recursion on ill-conditioned stacks (large
// |γ·L| products: thick, highly conductive, or high frequency), where it
// loses the film signal to cancellation; conditioning is reported, never
// silently tolerated. The precise backend runs the same fold in
// arbitrary-precision arithmetic, scalar per k, and exists exactly for
// those stacks.
package solver
