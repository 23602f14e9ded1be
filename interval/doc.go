/*Package interval implements genomic regions and a chromosome-binned
  region index.  Unlike an interval union, overlapping regions are tracked
  separately, since each region may carry its own strand restriction.  The
  index buckets regions into fixed-width coordinate bins so that a point
  query only inspects the regions registered in one bin; bin membership is
  a candidate filter only, and callers always re-test overlap against the
  region's real start/end.
*/
package interval
