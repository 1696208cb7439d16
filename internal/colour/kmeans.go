package colour

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

// KMeansExtractor implements color extraction using k-means clustering.
type KMeansExtractor struct {
	maxIterations int
	convergence   float64
	maxSamples    int
}

// NewKMeansExtractor creates a new KMeansExtractor with default settings.
func NewKMeansExtractor() *KMeansExtractor {
	return &KMeansExtractor{
		maxIterations: 20,
		convergence:   2.0,
		maxSamples:    2000,
	}
}

// Extract clusters the sampled pixels of img into at most count groups.
// Each cluster carries the number of samples assigned to it.
func (e *KMeansExtractor) Extract(img image.Image, count int) ([]swatch.Cluster, error) {
	if img == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	pixels := samplePixels(img, e.maxSamples)
	if len(pixels) == 0 {
		return nil, fmt.Errorf("no pixels found in image")
	}

	// Count unique colours first.
	uniqueColors := make([]RGB, 0, len(pixels))
	counts := make(map[RGB]int)
	for _, p := range pixels {
		rgb := ToRGB(p)
		if counts[rgb] == 0 {
			uniqueColors = append(uniqueColors, rgb)
		}
		counts[rgb]++
	}

	// Few enough unique colours: each one is its own cluster.
	if count >= len(uniqueColors) {
		clusters := make([]swatch.Cluster, len(uniqueColors))
		for i, rgb := range uniqueColors {
			clusters[i] = newCluster(rgb, counts[rgb])
		}
		return clusters, nil
	}

	centroids, sizes := e.kmeans(pixels, count)

	clusters := make([]swatch.Cluster, 0, len(centroids))
	for i, c := range centroids {
		if sizes[i] == 0 {
			continue
		}
		rgb := RGB{
			R: clampChannel(c.R),
			G: clampChannel(c.G),
			B: clampChannel(c.B),
		}
		clusters = append(clusters, newCluster(rgb, sizes[i]))
	}

	return clusters, nil
}

func clampChannel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// point3D represents a point in 3D RGB color space.
type point3D struct {
	R, G, B float64
}

// distance calculates the Euclidean distance between two points in RGB space.
func (p point3D) distance(other point3D) float64 {
	dr := p.R - other.R
	dg := p.G - other.G
	db := p.B - other.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// samplePixels samples opaque pixels from the image.
// Large images are grid-sampled down to roughly maxSamples points.
func samplePixels(img image.Image, maxSamples int) []color.Color {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	totalPixels := width * height

	step := 1
	if totalPixels > maxSamples {
		step = max(int(math.Ceil(math.Sqrt(float64(totalPixels)/float64(maxSamples)))), 1)
	}

	pixels := make([]color.Color, 0, min(totalPixels, maxSamples))
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c := img.At(x, y)
			if _, _, _, a := c.RGBA(); a == 0 {
				continue
			}
			pixels = append(pixels, c)
			if len(pixels) >= maxSamples {
				return pixels
			}
		}
	}

	return pixels
}

// kmeans performs k-means clustering on the pixel data.
// Returns centroids and the number of points assigned to each.
func (e *KMeansExtractor) kmeans(pixels []color.Color, k int) ([]point3D, []int) {
	// Convert colors to 3D points
	points := make([]point3D, len(pixels))
	for i, c := range pixels {
		rgb := ToRGB(c)
		points[i] = point3D{
			R: float64(rgb.R),
			G: float64(rgb.G),
			B: float64(rgb.B),
		}
	}

	// Initialize centroids using k-means++ algorithm
	centroids := e.initializeCentroidsKMeansPlusPlus(points, k)

	// Track cluster assignments
	assignments := make([]int, len(points))

	// Iterate until convergence or max iterations
	for iter := 0; iter < e.maxIterations; iter++ {
		// Assign each point to nearest centroid
		changed := 0
		for i, point := range points {
			nearest := e.findNearestCentroid(point, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed++
			}
		}

		// If very few assignments changed (< 1%), we've converged
		if float64(changed)/float64(len(points)) < 0.01 {
			break
		}

		// Recalculate centroids
		newCentroids := e.recalculateCentroids(points, assignments, k)

		// Check for convergence based on centroid movement
		totalMovement := 0.0
		for i := range centroids {
			totalMovement += centroids[i].distance(newCentroids[i])
		}
		avgMovement := totalMovement / float64(k)

		centroids = newCentroids

		// If centroids barely moved, we've converged
		if avgMovement < e.convergence {
			break
		}
	}

	// Final assignment against the settled centroids.
	sizes := make([]int, k)
	for _, point := range points {
		sizes[e.findNearestCentroid(point, centroids)]++
	}

	return centroids, sizes
}

// initializeCentroidsKMeansPlusPlus initializes centroids using k-means++ algorithm.
// This provides better initial centroids than random selection.
func (e *KMeansExtractor) initializeCentroidsKMeansPlusPlus(points []point3D, k int) []point3D {
	if len(points) == 0 || k == 0 {
		return []point3D{}
	}

	centroids := make([]point3D, 0, k)

	// Choose first centroid randomly
	firstIdx := rand.Intn(len(points))
	centroids = append(centroids, points[firstIdx])

	// Choose remaining centroids
	for len(centroids) < k {
		// Calculate distances from each point to nearest centroid
		distances := make([]float64, len(points))
		totalDistance := 0.0

		for i, point := range points {
			minDist := math.MaxFloat64
			for _, centroid := range centroids {
				dist := point.distance(centroid)
				if dist < minDist {
					minDist = dist
				}
			}
			// Square the distance for k-means++
			distances[i] = minDist * minDist
			totalDistance += distances[i]
		}

		// Choose next centroid with probability proportional to squared distance
		if totalDistance == 0 {
			// All remaining points are too close or identical to existing centroids
			// Just duplicate an existing centroid slightly perturbed
			if len(centroids) > 0 {
				// Duplicate the last centroid with a tiny perturbation
				lastCentroid := centroids[len(centroids)-1]
				centroids = append(centroids, point3D{
					R: lastCentroid.R + 0.1,
					G: lastCentroid.G + 0.1,
					B: lastCentroid.B + 0.1,
				})
			}
			continue
		}

		target := rand.Float64() * totalDistance
		cumulative := 0.0
		for i, dist := range distances {
			cumulative += dist
			if cumulative >= target {
				centroids = append(centroids, points[i])
				break
			}
		}
	}

	return centroids
}

// findNearestCentroid finds the index of the nearest centroid to a point.
func (e *KMeansExtractor) findNearestCentroid(point point3D, centroids []point3D) int {
	minDist := math.MaxFloat64
	nearest := 0

	for i, centroid := range centroids {
		dist := point.distance(centroid)
		if dist < minDist {
			minDist = dist
			nearest = i
		}
	}

	return nearest
}

// recalculateCentroids recalculates centroid positions based on assigned points.
func (e *KMeansExtractor) recalculateCentroids(points []point3D, assignments []int, k int) []point3D {
	// Sum up all points assigned to each cluster
	sums := make([]point3D, k)
	counts := make([]int, k)

	for i, point := range points {
		cluster := assignments[i]
		sums[cluster].R += point.R
		sums[cluster].G += point.G
		sums[cluster].B += point.B
		counts[cluster]++
	}

	// Calculate averages
	centroids := make([]point3D, k)
	for i := range k {
		if counts[i] > 0 {
			centroids[i] = point3D{
				R: sums[i].R / float64(counts[i]),
				G: sums[i].G / float64(counts[i]),
				B: sums[i].B / float64(counts[i]),
			}
		} else {
			// Empty cluster - reinitialize randomly
			centroids[i] = points[rand.Intn(len(points))]
		}
	}

	return centroids
}
