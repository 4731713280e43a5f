package classes

import "strings"

// Status is the severity shown next to a diagnosis.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

// Advice is the human readable description of a label.
type Advice struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
	Status      Status `json:"status"`
}

var adviceTable = map[string]Advice{
	"Apple___healthy": {
		Name:        "Apple - Healthy",
		Description: "Your apple tree leaves look vigorous and free of spots or lesions.",
		Treatment:   "Continue with regular watering and fertilization schedules. Monitor for seasonal pests.",
		Status:      StatusHealthy,
	},
	"Blueberry___healthy": {
		Name:        "Blueberry - Healthy",
		Description: "The foliage is vibrant with no signs of chlorosis or fungal infection.",
		Treatment:   "Maintain acidic soil pH (4.5-5.5) and ensure consistent moisture.",
		Status:      StatusHealthy,
	},
	"Cherry_(including_sour)___healthy": {
		Name:        "Cherry - Healthy",
		Description: "Leaves are green and intact. No signs of mildew or rot.",
		Treatment:   "Prune regularly to maintain airflow and prevent future fungal issues.",
		Status:      StatusHealthy,
	},
	"Corn_(maize)___healthy": {
		Name:        "Corn - Healthy",
		Description: "Stalks are strong and leaves are uniform in color without streaks.",
		Treatment:   "Ensure adequate nitrogen supply during the rapid growth phase.",
		Status:      StatusHealthy,
	},
	"Grape___healthy": {
		Name:        "Grape - Healthy",
		Description: "Vines appear robust with clear, green leaves.",
		Treatment:   "Keep vines trained on trellises to ensure good sun exposure and airflow.",
		Status:      StatusHealthy,
	},
	"Peach___healthy": {
		Name:        "Peach - Healthy",
		Description: "Foliage is lush and free of leaf curl or bacterial spots.",
		Treatment:   "Apply a dormant spray in winter to prevent spring leaf curl.",
		Status:      StatusHealthy,
	},
	"Pepper,_bell___healthy": {
		Name:        "Bell Pepper - Healthy",
		Description: "Plant is sturdy with glossy green leaves.",
		Treatment:   "Stake plants as they grow heavy with fruit to prevent stem breakage.",
		Status:      StatusHealthy,
	},
	"Potato___healthy": {
		Name:        "Potato - Healthy",
		Description: "Leaves are free of blight spots and insect damage.",
		Treatment:   "Hill up soil around the base to protect developing tubers from sunlight.",
		Status:      StatusHealthy,
	},
	"Raspberry___healthy": {
		Name:        "Raspberry - Healthy",
		Description: "Canes are green and leaves are free of rust or mosaic patterns.",
		Treatment:   "Prune old canes after harvest to encourage new growth.",
		Status:      StatusHealthy,
	},
	"Soybean___healthy": {
		Name:        "Soybean - Healthy",
		Description: "Your soybean plant is thriving with no signs of rust or discoloration.",
		Treatment:   "Keep the area weed-free to reduce competition for nutrients.",
		Status:      StatusHealthy,
	},
	"Strawberry___healthy": {
		Name:        "Strawberry - Healthy",
		Description: "Low-growing foliage is green and crisp.",
		Treatment:   "Mulch with straw to keep fruit off the soil and retain moisture.",
		Status:      StatusHealthy,
	},
	"Tomato___healthy": {
		Name:        "Tomato - Healthy",
		Description: "Plant shows vigorous growth with no spotting or wilting.",
		Treatment:   "Remove suckers to focus energy on fruit production. Water consistently.",
		Status:      StatusHealthy,
	},
	"Apple___Apple_scab": {
		Name:        "Apple Scab",
		Description: "A fungal disease causing olive-green to black spots on leaves and fruit.",
		Treatment:   "Rake up and destroy fallen leaves. Apply fungicides like Captan or Sulfur early in the season.",
		Status:      StatusDanger,
	},
	"Apple___Black_rot": {
		Name:        "Black Rot",
		Description: "Causes purple spots on leaves and rotting, mummified fruit.",
		Treatment:   "Prune out dead wood and remove mummified fruit. Apply fungicides during the growing season.",
		Status:      StatusDanger,
	},
	"Apple___Cedar_apple_rust": {
		Name:        "Cedar Apple Rust",
		Description: "Bright orange-yellow spots on leaves. Requires juniper trees nearby to complete its cycle.",
		Treatment:   "Remove nearby juniper/cedar trees if possible. Apply fungicides at bud break.",
		Status:      StatusWarning,
	},
	"Cherry_(including_sour)___Powdery_mildew": {
		Name:        "Powdery Mildew",
		Description: "White, powdery fungal growth on leaves and stems.",
		Treatment:   "Prune for airflow. Apply sulfur-based fungicides or neem oil.",
		Status:      StatusWarning,
	},
	"Corn_(maize)___Cercospora_leaf_spot Gray_leaf_spot": {
		Name:        "Gray Leaf Spot",
		Description: "Rectangular, gray-to-tan lesions on leaves.",
		Treatment:   "Rotate crops. Use resistant hybrids. Apply fungicides if infection is severe.",
		Status:      StatusDanger,
	},
	"Corn_(maize)___Common_rust_": {
		Name:        "Common Rust",
		Description: "Pustules on leaves that release rusty red spores.",
		Treatment:   "Plant resistant varieties. Fungicides are rarely needed unless infection is very early.",
		Status:      StatusWarning,
	},
	"Corn_(maize)___Northern_Leaf_Blight": {
		Name:        "Northern Leaf Blight",
		Description: "Long, cigar-shaped grayish lesions on leaves.",
		Treatment:   "Use resistant hybrids. Rotate crops to reduce overwintering spores.",
		Status:      StatusDanger,
	},
	"Grape___Black_rot": {
		Name:        "Black Rot",
		Description: "Small brown leaf spots and shriveled, black grapes.",
		Treatment:   "Remove mummified berries. Apply fungicides (Mancozeb/Myclobutanil) from bud break to fruit set.",
		Status:      StatusDanger,
	},
	"Grape___Esca_(Black_Measles)": {
		Name:        "Esca (Black Measles)",
		Description: "Leaves show 'tiger stripes' (yellow/red between veins). Berries spot.",
		Treatment:   "No cure. Remove infected vines. Prune late in winter to reduce infection risk.",
		Status:      StatusDanger,
	},
	"Grape___Leaf_blight_(Isariopsis_Leaf_Spot)": {
		Name:        "Isariopsis Leaf Spot",
		Description: "Irregular brown spots on leaves with a fuzzy appearance.",
		Treatment:   "Apply fungicides used for other grape diseases. Improve air circulation.",
		Status:      StatusWarning,
	},
	"Orange___Haunglongbing_(Citrus_greening)": {
		Name:        "Citrus Greening (HLB)",
		Description: "Mottled yellow leaves and misshapen, green/bitter fruit. Very serious.",
		Treatment:   "There is no cure. Remove and destroy the tree to prevent spread. Control psyllid insects.",
		Status:      StatusDanger,
	},
	"Peach___Bacterial_spot": {
		Name:        "Bacterial Spot",
		Description: "Small, water-soaked spots on leaves that turn into holes ('shot hole').",
		Treatment:   "Apply copper sprays or oxytetracycline during the growing season. Plant resistant varieties.",
		Status:      StatusWarning,
	},
	"Pepper,_bell___Bacterial_spot": {
		Name:        "Bacterial Spot",
		Description: "Small dark spots on leaves and fruit. Leaves may turn yellow and drop.",
		Treatment:   "Use copper-based bactericides. Remove infected debris. Avoid overhead watering.",
		Status:      StatusDanger,
	},
	"Potato___Early_blight": {
		Name:        "Early Blight",
		Description: "Concentric 'bullseye' rings on lower leaves.",
		Treatment:   "Apply copper fungicide. Mulch soil to prevent spore splash.",
		Status:      StatusWarning,
	},
	"Potato___Late_blight": {
		Name:        "Late Blight",
		Description: "Large, dark, water-soaked spots. White fuzz on leaf undersides.",
		Treatment:   "Remove infected plants immediately. Apply fungicides preventatively.",
		Status:      StatusDanger,
	},
	"Squash___Powdery_mildew": {
		Name:        "Powdery Mildew",
		Description: "White, talcum-powder-like growth on leaf surfaces.",
		Treatment:   "Apply Neem oil or sulfur. Water at the base, not on leaves.",
		Status:      StatusWarning,
	},
	"Strawberry___Leaf_scorch": {
		Name:        "Leaf Scorch",
		Description: "Irregular purple blotches on leaves that turn brown.",
		Treatment:   "Remove infected leaves. Improve air circulation. Fungicides may be needed.",
		Status:      StatusWarning,
	},
	"Tomato___Bacterial_spot": {
		Name:        "Bacterial Spot",
		Description: "Small, dark, greasy spots on leaves and fruit.",
		Treatment:   "Use copper sprays. Avoid overhead watering. Clean tools regularly.",
		Status:      StatusDanger,
	},
	"Tomato___Early_blight": {
		Name:        "Early Blight",
		Description: "Dark brown spots with concentric rings, starting on lower leaves.",
		Treatment:   "Prune lower leaves to stop soil splash. Use copper fungicide or Neem oil.",
		Status:      StatusWarning,
	},
	"Tomato___Late_blight": {
		Name:        "Late Blight",
		Description: "Greasy, gray-green spots on leaves. Spreads rapidly in cool, wet weather.",
		Treatment:   "Remove infected plants immediately to save the crop. Fungicides are preventative only.",
		Status:      StatusDanger,
	},
	"Tomato___Leaf_Mold": {
		Name:        "Leaf Mold",
		Description: "Yellow spots on top of leaves, olive-green mold on the bottom.",
		Treatment:   "Reduce humidity. Improve airflow. Fungicides can help if caught early.",
		Status:      StatusWarning,
	},
	"Tomato___Septoria_leaf_spot": {
		Name:        "Septoria Leaf Spot",
		Description: "Small circular spots with dark borders and gray centers.",
		Treatment:   "Remove infected leaves. Mulch soil. Apply fungicide.",
		Status:      StatusWarning,
	},
	"Tomato___Spider_mites Two-spotted_spider_mite": {
		Name:        "Two-Spotted Spider Mite",
		Description: "Tiny yellow stippling on leaves. Webbing may be visible.",
		Treatment:   "Spray with strong stream of water. Use insecticidal soap or Neem oil.",
		Status:      StatusWarning,
	},
	"Tomato___Target_Spot": {
		Name:        "Target Spot",
		Description: "Brown lesions with concentric rings (targets) on leaves and stems.",
		Treatment:   "Improve airflow. Apply fungicides like chlorothalonil or copper.",
		Status:      StatusWarning,
	},
	"Tomato___Tomato_Yellow_Leaf_Curl_Virus": {
		Name:        "Yellow Leaf Curl Virus",
		Description: "Leaves curl upward and turn yellow. Plant becomes stunted.",
		Treatment:   "Remove infected plants. Control whiteflies (the carriers) with sticky traps or soap.",
		Status:      StatusDanger,
	},
	"Tomato___Tomato_mosaic_virus": {
		Name:        "Tomato Mosaic Virus",
		Description: "Mottled light and dark green patterns on leaves.",
		Treatment:   "No cure. Remove infected plants. Wash hands thoroughly (can spread via tobacco).",
		Status:      StatusDanger,
	},
}

// AdviceFor returns the advice entry for label. Labels without a curated
// entry get one derived from the label itself.
func AdviceFor(label string) Advice {
	if a, ok := adviceTable[label]; ok {
		return a
	}
	plant, condition, _ := strings.Cut(label, "___")
	plant = strings.ReplaceAll(plant, "_", " ")
	condition = strings.TrimSpace(strings.ReplaceAll(condition, "_", " "))
	if condition == "" || strings.EqualFold(condition, "healthy") {
		return Advice{
			Name:        plant + " - Healthy",
			Description: "No visible signs of disease.",
			Treatment:   "Continue regular care and monitoring.",
			Status:      StatusHealthy,
		}
	}
	return Advice{
		Name:        plant + " - " + condition,
		Description: "Symptoms consistent with " + condition + ".",
		Treatment:   "Isolate affected plants and consult a local extension service.",
		Status:      StatusWarning,
	}
}
