package tools

// Static reference data backing the read-only lookup tools. Real deployments
// replace these with departmental data feeds; the lookup contract stays the
// same.

var weatherByDistrict = map[string]string{
	"jaipur":   "आज आंशिक रूप से बादल छाए रहेंगे, अधिकतम 34°C। / Partly cloudy today, high of 34°C.",
	"lucknow":  "हल्की बारिश की संभावना, अधिकतम 31°C। / Chance of light rain, high of 31°C.",
	"pune":     "साफ आसमान, अधिकतम 29°C। / Clear skies, high of 29°C.",
	"varanasi": "उमस भरा मौसम, अधिकतम 33°C। / Humid conditions, high of 33°C.",
}

var mandiPrices = map[string]string{
	"wheat":   "₹2,275 प्रति क्विंटल / ₹2,275 per quintal",
	"गेहूं":   "₹2,275 प्रति क्विंटल / ₹2,275 per quintal",
	"rice":    "₹2,183 प्रति क्विंटल / ₹2,183 per quintal",
	"धान":     "₹2,183 प्रति क्विंटल / ₹2,183 per quintal",
	"mustard": "₹5,650 प्रति क्विंटल / ₹5,650 per quintal",
	"सरसों":   "₹5,650 प्रति क्विंटल / ₹5,650 per quintal",
}

var schemeInfo = map[string]string{
	"PM-Kisan":              "पात्र किसान परिवारों को ₹6,000 प्रति वर्ष तीन किस्तों में। / Eligible farmer families receive ₹6,000 per year in three installments.",
	"Ayushman Bharat":       "पात्र परिवारों को ₹5 लाख तक का वार्षिक स्वास्थ्य बीमा। / Eligible families get health cover up to ₹5 lakh per year.",
	"PM Awas Yojana":        "ग्रामीण आवास निर्माण हेतु वित्तीय सहायता। / Financial assistance for rural housing construction.",
	"Sukanya Samriddhi":     "बालिकाओं के लिए उच्च ब्याज बचत योजना। / High-interest savings scheme for girl children.",
}

var serviceCenters = map[string]string{
	"jaipur":   "जन सेवा केंद्र, कलेक्ट्रेट परिसर, जयपुर (सोम-शनि 10:00-17:00)। / Jan Seva Kendra, Collectorate Campus, Jaipur (Mon-Sat 10:00-17:00).",
	"lucknow":  "CSC केंद्र, विकास भवन, लखनऊ (सोम-शुक्र 9:30-17:30)। / CSC Center, Vikas Bhawan, Lucknow (Mon-Fri 9:30-17:30).",
	"varanasi": "जन सेवा केंद्र, सिगरा, वाराणसी (सोम-शनि 10:00-16:00)। / Jan Seva Kendra, Sigra, Varanasi (Mon-Sat 10:00-16:00).",
}
