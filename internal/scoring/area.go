package scoring

const gridSize = 5

// LargestRegion computes the size of the largest 4-connected contiguous
// region of cells equal to marker. Diagonal adjacency does not count.
// Returns 0 when the marker claims no cells. Deterministic, no side effects;
// callers guarantee a well-formed fixed-size grid.
func LargestRegion(grid [gridSize][gridSize]string, marker string) int {
	var visited [gridSize][gridSize]bool
	maxArea := 0

	for row := range grid {
		for col := range grid[row] {
			if grid[row][col] != marker || visited[row][col] {
				continue
			}

			if area := fill(&grid, &visited, marker, row, col); area > maxArea {
				maxArea = area
			}
		}
	}

	return maxArea
}

// fill flood-fills the region containing (row,col) and returns its size.
func fill(grid *[gridSize][gridSize]string, visited *[gridSize][gridSize]bool, marker string, row, col int) int {
	if row < 0 || row >= gridSize || col < 0 || col >= gridSize {
		return 0
	}

	if visited[row][col] || grid[row][col] != marker {
		return 0
	}

	visited[row][col] = true

	return 1 +
		fill(grid, visited, marker, row-1, col) +
		fill(grid, visited, marker, row+1, col) +
		fill(grid, visited, marker, row, col-1) +
		fill(grid, visited, marker, row, col+1)
}
