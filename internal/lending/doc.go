// Package lending holds the rules every reader and writer of loans shares:
// how a loan is classified, how many copies of a book are free, how long a
// loan lasts, and the errors a lending operation can end with.
//
// Everything here is a pure function of its inputs. Availability and the
// OVERDUE status are never stored; they are recomputed from the loan
// records whenever they are needed.
package lending
